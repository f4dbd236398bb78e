package echoserver

// indexPage is the embedded echo test page served at /.
const indexPage = `<!DOCTYPE html>
<html>
<head><title>echo</title></head>
<body>
<h1>WebSocket echo</h1>
<input id="msg" value="PING"><button onclick="send()">Send</button>
<pre id="log"></pre>
<script>
const out = document.getElementById("log");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onopen = () => out.textContent += "open\n";
ws.onmessage = (e) => out.textContent += "recv: " + e.data + "\n";
ws.onclose = () => out.textContent += "close\n";
function send() {
  const v = document.getElementById("msg").value;
  ws.send(v);
  out.textContent += "sent: " + v + "\n";
}
</script>
</body>
</html>
`
