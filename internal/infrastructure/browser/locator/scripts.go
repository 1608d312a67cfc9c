package locator

// Page scripts shared by the CDP and Playwright providers. Each is a function
// declaration that runs with the element bound to this and takes at most one
// argument.
const (
	DescribeJS = `function () {
  let s = this.tagName.toLowerCase();
  if (this.id) s += '#' + this.id;
  else if (this.classList && this.classList.length) s += '.' + this.classList[0];
  return '<' + s + '>';
}`

	IsAttachedJS = `function () { return this.isConnected; }`

	IsVisibleJS = `function () {
  if (!this.isConnected) return false;
  const style = getComputedStyle(this);
  if (style.visibility === 'hidden' || style.display === 'none') return false;
  const r = this.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
}`

	// CoveredByJS returns a description of the element receiving a pointer
	// event at the center of this, or "" when this would receive it.
	CoveredByJS = `function () {
  const r = this.getBoundingClientRect();
  const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
  if (!hit || hit === this || this.contains(hit)) return '';
  let s = hit.tagName.toLowerCase();
  if (hit.id) s += '#' + hit.id;
  return '<' + s + '>';
}`

	IsCheckedJS = `function () {
  if (this.type === 'checkbox' || this.type === 'radio') return this.checked;
  return this.getAttribute('aria-checked') === 'true';
}`

	// SetValueJS assigns through the native setter so frameworks that track
	// the value property still see the change. It fires no events.
	SetValueJS = `function (v) {
  if (this instanceof HTMLInputElement || this instanceof HTMLTextAreaElement) {
    const proto = this instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
    Object.getOwnPropertyDescriptor(proto, 'value').set.call(this, v);
    return true;
  }
  if (this.isContentEditable) { this.textContent = v; return true; }
  throw new Error('element is not editable');
}`

	DispatchJS = `function (type) {
  const mouse = /^(click|dblclick|mouse)/.test(type);
  const init = { bubbles: type !== 'mouseenter' && type !== 'mouseleave', cancelable: true };
  const ev = mouse ? new MouseEvent(type, Object.assign({ view: window }, init)) : new Event(type, init);
  this.dispatchEvent(ev);
  return true;
}`

	// GetAttributeJS returns the live value for "value" on form fields and
	// null for a missing attribute.
	GetAttributeJS = `function (name) {
  if (name === 'value' && 'value' in this) return String(this.value);
  return this.getAttribute(name);
}`

	TextJS = `function () { return this.innerText !== undefined ? this.innerText : this.textContent; }`

	SelectOptionJS = `function (v) {
  const norm = s => s.replace(/\s+/g, ' ').trim();
  const opts = Array.from(this.options || []);
  const o = opts.find(o => o.value === v) || opts.find(o => norm(o.textContent) === norm(v));
  if (!o) return false;
  this.value = o.value;
  this.dispatchEvent(new Event('input', { bubbles: true }));
  this.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
}`

	// XPathAllJS evaluates an XPath expression relative to this.
	XPathAllJS = `function (xp) {
  const out = [];
  const res = document.evaluate(xp, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
  for (let i = 0; i < res.snapshotLength; i++) out.push(res.snapshotItem(i));
  return out;
}`
)

// Relative makes an absolute XPath expression relative to its context node.
func Relative(xpath string) string {
	if len(xpath) > 0 && xpath[0] == '/' {
		return "." + xpath
	}
	return xpath
}
