package browsertest

// Test pages served by httptest.
const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	FormHTML = `<!DOCTYPE html>
<html>
<body>
	<form id="testForm" onsubmit="return false">
		<input id="username" type="text" name="username" placeholder="User name" />
		<label><input id="remember" type="checkbox" /> Remember me</label>
		<select id="country"><option value="">Any</option><option value="de">Germany</option></select>
		<button id="submit" type="submit">Submit</button>
	</form>
	<div id="log"></div>
	<script>
		document.getElementById('username').addEventListener('input', function (e) {
			document.getElementById('log').textContent = 'input:' + e.target.value;
		});
	</script>
</body>
</html>`

	CoveredHTML = `<!DOCTYPE html>
<html>
<body>
	<div id="overlay" style="position:fixed;inset:0;z-index:10"></div>
	<button id="btn">Click Me</button>
	<div id="result"></div>
	<script>
		document.getElementById('btn').addEventListener('click', function () {
			document.getElementById('result').textContent = 'Clicked!';
		});
	</script>
</body>
</html>`

	PopupHTML = `<!DOCTYPE html>
<html>
<body>
	<a id="open" href="/popup" target="_blank">Open</a>
	<section id="list">
		<p>First</p>
		<p>Second</p>
	</section>
</body>
</html>`
)
