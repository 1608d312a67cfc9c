package method

import (
	"context"
	"fmt"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
)

var (
	_ output.ActionMethod = (*NativeMethod)(nil)
	_ output.ActionMethod = (*DispatchMethod)(nil)
	_ output.ActionMethod = (*KeyboardMethod)(nil)
)

// Defaults returns the built-in methods in registration order.
func Defaults() []output.ActionMethod {
	return []output.ActionMethod{NewNativeMethod(), NewDispatchMethod(), NewKeyboardMethod()}
}

func unsupported(m entity.Method, kind entity.ActionKind) error {
	return fmt.Errorf("%w: %s cannot %s", entity.ErrMethodUnsupported, m, kind)
}

// NativeMethod uses the provider's trusted input: real mouse events with
// actionability checks, real typing and option selection.
type NativeMethod struct{}

func NewNativeMethod() *NativeMethod {
	return &NativeMethod{}
}

func (m *NativeMethod) Name() entity.Method { return entity.MethodNative }

func (m *NativeMethod) Supports(entity.ActionKind) bool { return true }

func (m *NativeMethod) Apply(ctx context.Context, page output.PagePort, el entity.ElementHandle, spec entity.ActionSpec) (entity.ActionOutput, error) {
	var out entity.ActionOutput
	var err error

	switch spec.Kind {
	case entity.ActionClick:
		err = page.Click(ctx, el)
	case entity.ActionFill:
		err = page.Fill(ctx, el, spec.Value)
	case entity.ActionCheck:
		err = page.SetChecked(ctx, el, true)
	case entity.ActionUncheck:
		err = page.SetChecked(ctx, el, false)
	case entity.ActionHover:
		err = page.Hover(ctx, el)
	case entity.ActionSelectOption:
		err = page.SelectOption(ctx, el, spec.Value)
	case entity.ActionGetText:
		out.Text, err = page.GetText(ctx, el)
	case entity.ActionGetAttribute:
		out.Attribute, out.Present, err = page.GetAttribute(ctx, el, spec.Attribute)
	default:
		return out, unsupported(m.Name(), spec.Kind)
	}
	return out, err
}

// DispatchMethod fires synthetic DOM events. It reaches elements that are
// covered by overlays or mid-animation, at the cost of skipping the browser's
// own hit testing.
type DispatchMethod struct{}

func NewDispatchMethod() *DispatchMethod {
	return &DispatchMethod{}
}

func (m *DispatchMethod) Name() entity.Method { return entity.MethodDispatch }

func (m *DispatchMethod) Supports(kind entity.ActionKind) bool {
	switch kind {
	case entity.ActionClick, entity.ActionFill, entity.ActionCheck, entity.ActionUncheck, entity.ActionHover:
		return true
	}
	return false
}

func (m *DispatchMethod) Apply(ctx context.Context, page output.PagePort, el entity.ElementHandle, spec entity.ActionSpec) (entity.ActionOutput, error) {
	var out entity.ActionOutput

	switch spec.Kind {
	case entity.ActionClick:
		return out, page.DispatchEvent(ctx, el, "click")
	case entity.ActionFill:
		if err := page.SetValue(ctx, el, spec.Value); err != nil {
			return out, err
		}
		return out, dispatchAll(ctx, page, el, "input", "change")
	case entity.ActionCheck, entity.ActionUncheck:
		return out, toggle(ctx, page, el, spec.Kind == entity.ActionCheck, func() error {
			return page.DispatchEvent(ctx, el, "click")
		})
	case entity.ActionHover:
		return out, dispatchAll(ctx, page, el, "mouseover", "mouseenter")
	}
	return out, unsupported(m.Name(), spec.Kind)
}

// KeyboardMethod focuses the element and drives it with key presses.
type KeyboardMethod struct{}

func NewKeyboardMethod() *KeyboardMethod {
	return &KeyboardMethod{}
}

func (m *KeyboardMethod) Name() entity.Method { return entity.MethodKeyboard }

func (m *KeyboardMethod) Supports(kind entity.ActionKind) bool {
	switch kind {
	case entity.ActionClick, entity.ActionFill, entity.ActionCheck, entity.ActionUncheck:
		return true
	}
	return false
}

func (m *KeyboardMethod) Apply(ctx context.Context, page output.PagePort, el entity.ElementHandle, spec entity.ActionSpec) (entity.ActionOutput, error) {
	var out entity.ActionOutput

	if !m.Supports(spec.Kind) {
		return out, unsupported(m.Name(), spec.Kind)
	}
	if err := page.Focus(ctx, el); err != nil {
		return out, fmt.Errorf("focus: %w", err)
	}

	switch spec.Kind {
	case entity.ActionClick:
		return out, page.Press(ctx, el, "Enter")
	case entity.ActionFill:
		if err := page.SetValue(ctx, el, ""); err != nil {
			return out, fmt.Errorf("clear: %w", err)
		}
		return out, page.Type(ctx, el, spec.Value)
	default:
		return out, toggle(ctx, page, el, spec.Kind == entity.ActionCheck, func() error {
			return page.Press(ctx, el, "Space")
		})
	}
}

func dispatchAll(ctx context.Context, page output.PagePort, el entity.ElementHandle, events ...string) error {
	for _, ev := range events {
		if err := page.DispatchEvent(ctx, el, ev); err != nil {
			return fmt.Errorf("dispatch %s: %w", ev, err)
		}
	}
	return nil
}

// toggle runs flip only when the checked state differs from want.
func toggle(ctx context.Context, page output.PagePort, el entity.ElementHandle, want bool, flip func() error) error {
	checked, err := page.IsChecked(ctx, el)
	if err != nil {
		return err
	}
	if checked == want {
		return nil
	}
	return flip()
}
