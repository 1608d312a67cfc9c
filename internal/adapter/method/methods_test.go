package method

import (
	"context"
	"testing"

	"resilient-ui/internal/domain/entity"
	"resilient-ui/internal/infrastructure/browser/static"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const form = `<html><body>
  <input id="name" value="old">
  <input id="agree" type="checkbox">
  <select id="size"><option value="s">Small</option><option value="l">Large</option></select>
  <button id="save" data-covered="div.modal-backdrop" title="Save changes">Save</button>
  <a id="help" href="/help">Help</a>
</body></html>`

func element(t *testing.T, p *static.Page, id string) entity.ElementHandle {
	t.Helper()
	found, err := p.FindAll(context.Background(), entity.ByID(id), nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	return found[0]
}

func lastEvent(p *static.Page) static.Event {
	events := p.Events()
	if len(events) == 0 {
		return static.Event{}
	}
	return events[len(events)-1]
}

func TestDefaults(t *testing.T) {
	var names []entity.Method
	for _, m := range Defaults() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []entity.Method{entity.MethodNative, entity.MethodDispatch, entity.MethodKeyboard}, names)
}

func TestNativeMethod(t *testing.T) {
	ctx := context.Background()
	p := static.MustNew(form)
	m := NewNativeMethod()

	_, err := m.Apply(ctx, p, element(t, p, "name"), entity.Fill("new"))
	require.NoError(t, err)

	out, err := m.Apply(ctx, p, element(t, p, "name"), entity.GetAttribute("value"))
	require.NoError(t, err)
	assert.Equal(t, "new", out.Attribute)
	assert.True(t, out.Present)

	_, err = m.Apply(ctx, p, element(t, p, "agree"), entity.Check())
	require.NoError(t, err)
	checked, err := p.IsChecked(ctx, element(t, p, "agree"))
	require.NoError(t, err)
	assert.True(t, checked)

	_, err = m.Apply(ctx, p, element(t, p, "size"), entity.SelectOption("Large"))
	require.NoError(t, err)

	out, err = m.Apply(ctx, p, element(t, p, "help"), entity.GetText())
	require.NoError(t, err)
	assert.Equal(t, "Help", out.Text)

	out, err = m.Apply(ctx, p, element(t, p, "help"), entity.GetAttribute("target"))
	require.NoError(t, err)
	assert.False(t, out.Present)

	_, err = m.Apply(ctx, p, element(t, p, "save"), entity.Click())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "covered")
}

func TestDispatchMethod(t *testing.T) {
	ctx := context.Background()
	p := static.MustNew(form)
	m := NewDispatchMethod()

	_, err := m.Apply(ctx, p, element(t, p, "save"), entity.Click())
	require.NoError(t, err)
	assert.Equal(t, "dispatch-click", lastEvent(p).Type)

	_, err = m.Apply(ctx, p, element(t, p, "name"), entity.Fill("typed"))
	require.NoError(t, err)
	assert.Equal(t, "dispatch-change", lastEvent(p).Type)
	v, _, err := p.GetAttribute(ctx, element(t, p, "name"), "value")
	require.NoError(t, err)
	assert.Equal(t, "typed", v)

	_, err = m.Apply(ctx, p, element(t, p, "agree"), entity.Check())
	require.NoError(t, err)
	_, err = m.Apply(ctx, p, element(t, p, "agree"), entity.Check())
	require.NoError(t, err)
	checked, err := p.IsChecked(ctx, element(t, p, "agree"))
	require.NoError(t, err)
	assert.True(t, checked, "a second check must not toggle the box back")

	assert.False(t, m.Supports(entity.ActionGetText))
	_, err = m.Apply(ctx, p, element(t, p, "size"), entity.SelectOption("s"))
	assert.ErrorIs(t, err, entity.ErrMethodUnsupported)
}

func TestKeyboardMethod(t *testing.T) {
	ctx := context.Background()
	p := static.MustNew(form)
	m := NewKeyboardMethod()

	_, err := m.Apply(ctx, p, element(t, p, "name"), entity.Fill("abc"))
	require.NoError(t, err)
	v, _, err := p.GetAttribute(ctx, element(t, p, "name"), "value")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = m.Apply(ctx, p, element(t, p, "agree"), entity.Check())
	require.NoError(t, err)
	checked, err := p.IsChecked(ctx, element(t, p, "agree"))
	require.NoError(t, err)
	assert.True(t, checked)

	_, err = m.Apply(ctx, p, element(t, p, "agree"), entity.Uncheck())
	require.NoError(t, err)
	checked, err = p.IsChecked(ctx, element(t, p, "agree"))
	require.NoError(t, err)
	assert.False(t, checked)

	_, err = m.Apply(ctx, p, element(t, p, "help"), entity.Hover())
	assert.ErrorIs(t, err, entity.ErrMethodUnsupported)
}
