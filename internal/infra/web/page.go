package web

import (
	"html/template"
	"net/http"

	"maizey-chat/internal/application"
	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/infra/i18n"
	"maizey-chat/internal/usecase"
)

type pageData struct {
	Chat     application.ChatView
	Sidebar  []model.ChatSummary
	Examples []string
	Status   usecase.ConnectionDetails
}

func parsePage(tr *i18n.Translator) *template.Template {
	return template.Must(template.New("page").Funcs(template.FuncMap{
		"t":  tr.T,
		"ts": summaryTime,
	}).Parse(pageHTML))
}

func summaryTime(m model.ChatSummary) string {
	return m.Timestamp.Local().Format("Jan 2 15:04")
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := s.state(r)
	data := pageData{
		Chat:     s.facade.View(st),
		Sidebar:  s.facade.Sidebar(ctx),
		Examples: s.facade.Examples,
		Status:   s.facade.Status(st),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("render page")
	}
}

const pageHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{t "app_title"}}</title>
<style>
body{margin:0;font-family:system-ui,sans-serif;display:flex;min-height:100vh;background:#f7f7f9;color:#1d1d1f}
aside{width:280px;background:#00274c;color:#fff;padding:16px;box-sizing:border-box}
aside h2{font-size:15px;color:#ffcb05;margin:18px 0 8px}
aside button,aside .chat{display:block;width:100%;margin:4px 0;padding:7px;border:0;border-radius:6px;text-align:left;cursor:pointer}
aside .chat{background:#0b3a66;color:#fff}
aside .row{display:flex;gap:4px}
aside .row .del{width:32px;text-align:center}
aside .muted{font-size:12px;color:#c8d3df}
main{flex:1;display:flex;flex-direction:column;max-width:900px;margin:0 auto;padding:16px}
.msg{margin:10px 0;padding:12px;border-radius:8px;background:#fff;box-shadow:0 1px 2px rgba(0,0,0,.08)}
.msg.user{background:#e8f0fe}
.msg .text{white-space:pre-wrap}
pre{background:#1e1e1e;color:#ddd;padding:10px;border-radius:6px;overflow:auto}
.copy{margin-top:6px;font-size:12px}
form.send{display:flex;gap:8px;margin-top:auto;padding-top:12px}
form.send input{flex:1;padding:10px;border-radius:6px;border:1px solid #bbb}
#thinking{display:none;color:#555;font-style:italic}
</style>
</head>
<body>
<aside>
  <h1 style="font-size:18px">{{t "app_title"}}</h1>
  <form method="post" action="/api/chat/new"><button type="submit">{{t "new_chat"}}</button></form>

  <h2>{{t "recent_chats"}}</h2>
  {{if not .Chat.Persistence}}<div class="muted">{{t "persistence_off"}}</div>{{end}}
  {{range .Sidebar}}
  <div class="row">
    <button class="chat" data-load="{{.SessionID}}" title="{{ts .}}">{{.Title}}</button>
    <button class="del" data-delete="{{.SessionID}}">&times;</button>
  </div>
  {{end}}
  {{if .Sidebar}}<button id="clear-all">{{t "clear_all"}}</button>{{end}}

  <h2>{{t "quick_actions"}}</h2>
  <button id="selftest">{{t "test_api"}}</button>
  <div class="muted" id="selftest-result"></div>

  <h2>{{t "try_examples"}}</h2>
  {{range .Examples}}<button class="example" data-query="{{.}}">{{.}}</button>{{end}}

  <h2>{{.Status.Status}}</h2>
  <div class="muted">{{.Status.Provider}} @ {{.Status.Endpoint}}</div>
  {{if .Status.Project}}<div class="muted">project {{.Status.Project}}</div>{{end}}
  {{if .Status.ConversationID}}<div class="muted">conversation {{.Status.ConversationID}}</div>{{end}}
</aside>

<main>
  <div id="messages">
  {{range $m := .Chat.Messages}}
    <div class="msg {{$m.Role}}">
      {{range $m.Segments}}
        {{if eq .Kind "code"}}<pre><code class="language-{{.Language}}">{{.Body}}</code></pre>
        <button class="copy" data-raw="{{$m.Content}}">{{t "copy_response"}}</button>
        {{else}}<div class="text">{{.Body}}</div>{{end}}
      {{end}}
      {{if eq $m.Role "assistant"}}<button class="copy" data-raw="{{$m.Content}}">{{t "copy_response"}}</button>{{end}}
    </div>
  {{end}}
  </div>
  <div id="thinking">{{t "thinking"}}</div>
  <form class="send" method="post" action="/api/chat/messages">
    <input name="query" autocomplete="off" placeholder="{{t "input_placeholder"}}">
    <button type="submit">&#10148;</button>
  </form>
</main>

<script>
const copied = {{t "copied"}};
async function call(method, url, body) {
  const opts = {method, headers: {}};
  if (body !== undefined) {
    opts.headers["Content-Type"] = "application/json";
    opts.body = JSON.stringify(body);
  }
  const res = await fetch(url, opts);
  return res.headers.get("Content-Type")?.startsWith("application/json") ? res.json() : res.text();
}
async function send(query) {
  if (!query.trim()) return;
  document.getElementById("thinking").style.display = "block";
  await call("POST", "/api/chat/messages", {query});
  location.reload();
}
document.querySelector("form.send").addEventListener("submit", e => {
  e.preventDefault();
  send(e.target.query.value);
});
document.querySelectorAll(".example").forEach(b => b.onclick = () => send(b.dataset.query));
document.querySelectorAll("[data-load]").forEach(b => b.onclick = async () => {
  await call("POST", "/api/history/" + encodeURIComponent(b.dataset.load) + "/load");
  location.reload();
});
document.querySelectorAll("[data-delete]").forEach(b => b.onclick = async () => {
  await call("DELETE", "/api/history/" + encodeURIComponent(b.dataset.delete));
  location.reload();
});
const clear = document.getElementById("clear-all");
if (clear) clear.onclick = async () => { await call("DELETE", "/api/history"); location.reload(); };
document.getElementById("selftest").onclick = async () => {
  const r = await call("GET", "/api/selftest");
  document.getElementById("selftest-result").textContent = r.message;
};
document.querySelectorAll(".copy").forEach(b => b.onclick = async () => {
  await navigator.clipboard.writeText(b.dataset.raw);
  const label = b.textContent;
  b.textContent = copied;
  setTimeout(() => b.textContent = label, 1500);
});
</script>
</body>
</html>
`
