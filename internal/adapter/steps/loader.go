// Package steps reads scenario files: YAML documents naming a start URL and
// an ordered list of steps, each pointing at an element through candidates.
package steps

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"resilient-ui/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

type fileSelector struct {
	ID          string `yaml:"id"`
	CSS         string `yaml:"css"`
	XPath       string `yaml:"xpath"`
	Text        string `yaml:"text"`
	Exact       bool   `yaml:"exact"`
	Role        string `yaml:"role"`
	Name        string `yaml:"name"`
	TestID      string `yaml:"testid"`
	Attr        string `yaml:"attr"`
	Value       string `yaml:"value"`
	Placeholder string `yaml:"placeholder"`
}

type fileStep struct {
	Name      string         `yaml:"name"`
	Action    string         `yaml:"action"`
	Query     []fileSelector `yaml:"query"`
	Within    []fileSelector `yaml:"within"`
	Nth       int            `yaml:"nth"`
	URL       string         `yaml:"url"`
	Value     string         `yaml:"value"`
	Attribute string         `yaml:"attribute"`
	Expect    string         `yaml:"expect"`
	Methods   []string       `yaml:"methods"`
	Timeout   string         `yaml:"timeout"`
	Wait      string         `yaml:"wait"`
	Panel     []fileSelector `yaml:"panel"`
	Empty     []fileSelector `yaml:"empty"`
	Policy    string         `yaml:"policy"`
}

type file struct {
	Name  string     `yaml:"name"`
	URL   string     `yaml:"url"`
	Steps []fileStep `yaml:"steps"`
}

func Load(path string) (*entity.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario. Unknown keys are rejected so typos
// in step files fail early instead of silently changing behavior.
func Parse(data []byte) (*entity.Scenario, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	sc := &entity.Scenario{Name: f.Name, URL: f.URL}
	for i, fs := range f.Steps {
		st, err := toStep(fs)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, fs.Name, err)
		}
		sc.Steps = append(sc.Steps, st)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Rebase resolves the scenario URL and navigate step URLs against base, so
// scenario files can use paths like "/search".
func Rebase(sc *entity.Scenario, base string) error {
	if base == "" {
		return nil
	}
	root, err := url.Parse(base)
	if err != nil {
		return entity.NewProgrammerError("bad base url %q: %v", base, err)
	}
	resolve := func(s string) (string, error) {
		if s == "" {
			return s, nil
		}
		ref, err := url.Parse(s)
		if err != nil {
			return "", entity.NewProgrammerError("bad url %q: %v", s, err)
		}
		return root.ResolveReference(ref).String(), nil
	}

	if sc.URL, err = resolve(sc.URL); err != nil {
		return err
	}
	for i := range sc.Steps {
		if sc.Steps[i].Action != entity.StepNavigate {
			continue
		}
		if sc.Steps[i].URL, err = resolve(sc.Steps[i].URL); err != nil {
			return err
		}
	}
	return nil
}

func toStep(fs fileStep) (entity.Step, error) {
	st := entity.Step{
		Name:      fs.Name,
		Action:    entity.StepAction(strings.TrimSpace(fs.Action)),
		URL:       fs.URL,
		Value:     fs.Value,
		Attribute: fs.Attribute,
		Expect:    fs.Expect,
		Policy:    fs.Policy,
	}

	var err error
	if st.Query, err = toQuery(fs.Name, fs.Query); err != nil {
		return st, err
	}
	st.Query.Index = fs.Nth
	if len(fs.Within) > 0 {
		scope, err := toQuery(fs.Name+" scope", fs.Within)
		if err != nil {
			return st, err
		}
		st.Query = st.Query.Within(scope)
	}
	if st.Panel, err = toQuery(fs.Name+" panel", fs.Panel); err != nil {
		return st, err
	}
	if st.Empty, err = toQuery(fs.Name+" empty", fs.Empty); err != nil {
		return st, err
	}

	for _, m := range fs.Methods {
		st.Methods = append(st.Methods, entity.Method(strings.TrimSpace(m)))
	}

	if fs.Timeout != "" {
		if st.Timeout, err = time.ParseDuration(fs.Timeout); err != nil {
			return st, entity.NewProgrammerError("bad timeout %q: %v", fs.Timeout, err)
		}
	}

	if fs.Wait != "" {
		st.Wait = parseWait(fs.Wait)
	}
	return st, nil
}

// parseWait reads "visible", "hidden", "idle" or "url:<regexp>".
func parseWait(s string) *entity.WaitSpec {
	kind, pattern, _ := strings.Cut(strings.TrimSpace(s), ":")
	return &entity.WaitSpec{Kind: entity.WaitKind(kind), Pattern: pattern}
}

func toQuery(name string, sels []fileSelector) (entity.ElementQuery, error) {
	q := entity.ElementQuery{Name: name}
	for _, fs := range sels {
		sel, err := toSelector(fs)
		if err != nil {
			return q, err
		}
		q.Candidates = append(q.Candidates, sel)
	}
	return q, nil
}

func toSelector(fs fileSelector) (entity.Selector, error) {
	var (
		out entity.Selector
		set int
	)
	pick := func(s entity.Selector, ok bool) {
		if ok {
			out = s
			set++
		}
	}

	pick(entity.ByID(fs.ID), fs.ID != "")
	pick(entity.ByCSS(fs.CSS), fs.CSS != "")
	pick(entity.ByXPath(fs.XPath), fs.XPath != "")
	pick(entity.Selector{Kind: entity.SelectorText, Value: fs.Text, Exact: fs.Exact}, fs.Text != "")
	pick(entity.ByRole(fs.Role, fs.Name), fs.Role != "")
	pick(entity.ByTestID(fs.TestID), fs.TestID != "")
	pick(entity.ByAttr(fs.Attr, fs.Value), fs.Attr != "")
	pick(entity.Selector{Kind: entity.SelectorPlaceholder, Value: fs.Placeholder, Exact: fs.Exact}, fs.Placeholder != "")

	if set != 1 {
		return out, entity.NewProgrammerError("selector needs exactly one of id, css, xpath, text, role, testid, attr, placeholder (got %d)", set)
	}
	if fs.Role != "" {
		out.Exact = fs.Exact
	}
	return out, nil
}
