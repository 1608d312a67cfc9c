package entity

import (
	"fmt"
	"regexp"
	"time"
)

type StepAction string

const (
	StepNavigate  StepAction = "navigate"
	StepClick     StepAction = "click"
	StepFill      StepAction = "fill"
	StepCheck     StepAction = "check"
	StepUncheck   StepAction = "uncheck"
	StepHover     StepAction = "hover"
	StepSelect    StepAction = "select"
	StepText      StepAction = "text"
	StepAttribute StepAction = "attribute"
	StepWait      StepAction = "wait"
	StepNewPage   StepAction = "expect-new-page"
	StepOpenPanel StepAction = "open-panel"
	StepResults   StepAction = "expect-results"
)

type WaitKind string

const (
	WaitVisible WaitKind = "visible"
	WaitHidden  WaitKind = "hidden"
	WaitURL     WaitKind = "url"
	WaitIdle    WaitKind = "idle"
)

type WaitSpec struct {
	Kind    WaitKind
	Pattern string
}

type Step struct {
	Name      string
	Action    StepAction
	Query     ElementQuery
	URL       string
	Value     string
	Attribute string
	Expect    string
	Methods   []Method
	Timeout   time.Duration
	Wait      *WaitSpec
	// Panel is the panel opened by an open-panel step; Query is its toggle.
	Panel ElementQuery
	// Empty is the "no data" message of an expect-results step; Query
	// matches the result rows.
	Empty  ElementQuery
	Policy string
}

// ActionSpec maps element steps to the executor's action kinds.
func (s Step) ActionSpec() (ActionSpec, bool) {
	var spec ActionSpec
	switch s.Action {
	case StepClick:
		spec = ActionSpec{Kind: ActionClick}
	case StepFill:
		spec = ActionSpec{Kind: ActionFill, Value: s.Value}
	case StepCheck:
		spec = ActionSpec{Kind: ActionCheck}
	case StepUncheck:
		spec = ActionSpec{Kind: ActionUncheck}
	case StepHover:
		spec = ActionSpec{Kind: ActionHover}
	case StepSelect:
		spec = ActionSpec{Kind: ActionSelectOption, Value: s.Value}
	case StepText:
		spec = ActionSpec{Kind: ActionGetText}
	case StepAttribute:
		spec = ActionSpec{Kind: ActionGetAttribute, Attribute: s.Attribute}
	default:
		return ActionSpec{}, false
	}
	if len(s.Methods) > 0 {
		spec.Primary = s.Methods[0]
		spec.Fallbacks = s.Methods[1:]
	}
	spec.Timeout = s.Timeout
	return spec, true
}

type Scenario struct {
	Name  string
	URL   string
	Steps []Step
}

func (sc *Scenario) Validate() error {
	if sc.URL == "" && len(sc.Steps) > 0 && sc.Steps[0].Action != StepNavigate {
		return NewProgrammerError("scenario %q needs a url or a leading navigate step", sc.Name)
	}
	if len(sc.Steps) == 0 {
		return NewProgrammerError("scenario %q has no steps", sc.Name)
	}
	for i, st := range sc.Steps {
		label := st.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		switch st.Action {
		case StepNavigate:
			if st.URL == "" {
				return NewProgrammerError("step %s: navigate needs a url", label)
			}
		case StepWait:
			if st.Wait == nil {
				return NewProgrammerError("step %s: wait needs a condition", label)
			}
			switch st.Wait.Kind {
			case WaitVisible, WaitHidden:
				if err := st.Query.Validate(); err != nil {
					return fmt.Errorf("step %s: %s wait: %w", label, st.Wait.Kind, err)
				}
			case WaitURL:
				if _, err := regexp.Compile(st.Wait.Pattern); err != nil {
					return NewProgrammerError("step %s: bad url pattern: %v", label, err)
				}
			case WaitIdle:
			default:
				return NewProgrammerError("step %s: unknown wait %q", label, st.Wait.Kind)
			}
		case StepNewPage:
			if err := st.Query.Validate(); err != nil {
				return fmt.Errorf("step %s: %w", label, err)
			}
		case StepOpenPanel, StepResults:
			second := st.Panel
			if st.Action == StepResults {
				second = st.Empty
			}
			if err := st.Query.Validate(); err != nil {
				return fmt.Errorf("step %s: %w", label, err)
			}
			if err := second.Validate(); err != nil {
				return fmt.Errorf("step %s: %w", label, err)
			}
		default:
			spec, ok := st.ActionSpec()
			if !ok {
				return NewProgrammerError("step %s: unknown action %q", label, st.Action)
			}
			if err := st.Query.Validate(); err != nil {
				return fmt.Errorf("step %s: %w", label, err)
			}
			if err := spec.Validate(); err != nil {
				return fmt.Errorf("step %s: %w", label, err)
			}
		}
	}
	return nil
}
