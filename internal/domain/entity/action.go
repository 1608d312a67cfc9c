package entity

import "time"

type ActionKind string

const (
	ActionClick        ActionKind = "click"
	ActionFill         ActionKind = "fill"
	ActionCheck        ActionKind = "check"
	ActionUncheck      ActionKind = "uncheck"
	ActionHover        ActionKind = "hover"
	ActionSelectOption ActionKind = "selectOption"
	ActionGetText      ActionKind = "getText"
	ActionGetAttribute ActionKind = "getAttribute"
)

func (k ActionKind) String() string {
	return string(k)
}

// Settles reports whether a successful action of this kind is followed by
// the settle delay.
func (k ActionKind) Settles() bool {
	return k == ActionClick || k == ActionCheck || k == ActionUncheck
}

type Method string

const (
	MethodNative   Method = "native"
	MethodDispatch Method = "dispatch"
	MethodKeyboard Method = "keyboard"
)

func (m Method) String() string {
	return string(m)
}

type ActionSpec struct {
	Kind      ActionKind
	Primary   Method
	Fallbacks []Method
	Value     string
	Attribute string
	Timeout   time.Duration
	// Settle overrides the executor's settle delay: zero keeps the default,
	// a negative value disables it.
	Settle time.Duration
}

func Click(fallbacks ...Method) ActionSpec {
	return ActionSpec{Kind: ActionClick, Primary: MethodNative, Fallbacks: fallbacks}
}

func Fill(value string, fallbacks ...Method) ActionSpec {
	return ActionSpec{Kind: ActionFill, Primary: MethodNative, Fallbacks: fallbacks, Value: value}
}

func Check(fallbacks ...Method) ActionSpec {
	return ActionSpec{Kind: ActionCheck, Primary: MethodNative, Fallbacks: fallbacks}
}

func Uncheck(fallbacks ...Method) ActionSpec {
	return ActionSpec{Kind: ActionUncheck, Primary: MethodNative, Fallbacks: fallbacks}
}

func Hover(fallbacks ...Method) ActionSpec {
	return ActionSpec{Kind: ActionHover, Primary: MethodNative, Fallbacks: fallbacks}
}

func SelectOption(value string, fallbacks ...Method) ActionSpec {
	return ActionSpec{Kind: ActionSelectOption, Primary: MethodNative, Fallbacks: fallbacks, Value: value}
}

func GetText() ActionSpec {
	return ActionSpec{Kind: ActionGetText, Primary: MethodNative}
}

func GetAttribute(name string) ActionSpec {
	return ActionSpec{Kind: ActionGetAttribute, Primary: MethodNative, Attribute: name}
}

func (s ActionSpec) WithTimeout(d time.Duration) ActionSpec {
	s.Timeout = d
	return s
}

func (s ActionSpec) WithSettle(d time.Duration) ActionSpec {
	s.Settle = d
	return s
}

func (s ActionSpec) WithPrimary(m Method) ActionSpec {
	s.Primary = m
	return s
}

// Methods returns the primary method followed by the fallbacks.
func (s ActionSpec) Methods() []Method {
	primary := s.Primary
	if primary == "" {
		primary = MethodNative
	}
	return append([]Method{primary}, s.Fallbacks...)
}

func (s ActionSpec) Validate() error {
	switch s.Kind {
	case ActionClick, ActionCheck, ActionUncheck, ActionHover, ActionGetText:
	case ActionFill:
	case ActionSelectOption:
		if s.Value == "" {
			return NewProgrammerError("selectOption needs a value")
		}
	case ActionGetAttribute:
		if s.Attribute == "" {
			return NewProgrammerError("getAttribute needs an attribute name")
		}
	default:
		return NewProgrammerError("unknown action kind %q", s.Kind)
	}
	if s.Timeout < 0 {
		return NewProgrammerError("negative timeout %s for %s", s.Timeout, s.Kind)
	}
	for _, m := range s.Methods() {
		if m == "" {
			return NewProgrammerError("empty method name for %s", s.Kind)
		}
	}
	return nil
}

// ActionOutput is what a method returns on success. Only reads fill it.
type ActionOutput struct {
	Text      string
	Attribute string
	Present   bool
}

type Attempt struct {
	Method Method
	Err    error
}

type ActionResult struct {
	Kind        ActionKind
	Method      Method
	MethodIndex int
	Attempts    []Attempt
	Element     ResolvedElement
	Output      ActionOutput
	Elapsed     time.Duration
}

func (r ActionResult) UsedFallback() bool {
	return r.MethodIndex > 0
}

func (r ActionResult) Text() string {
	return r.Output.Text
}
