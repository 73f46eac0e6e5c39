package http

import (
	"html/template"
	"net/http"
)

const botPage = `<!DOCTYPE html>
<html><head><title>Automated request</title></head>
<body><p>This service is meant for interactive browsers. Automated requests are not served.</p></body></html>
`

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head><body>
{{range .Notices}}<p class="notice">{{.}}</p>{{end}}{{end}}

{{define "foot"}}</body></html>{{end}}

{{define "index"}}{{template "head" .}}
<h1>Single sign-on</h1>
{{if .Username}}
<p>Signed in as <strong>{{.Username}}</strong> ({{.AuthLevel}}).</p>
<ul>
{{range .Logins}}<li>{{.RemoteService}} via {{.Provider}}{{if .SignedOut}} (signed out){{end}}</li>{{end}}
</ul>
<p><a href="/logout">Sign out</a></p>
{{else}}
<p>You are not signed in. <a href="/login">Sign in</a></p>
{{end}}
{{template "foot" .}}{{end}}

{{define "login"}}{{template "head" .}}
<h1>Sign in</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<input type="hidden" name="next" value="{{.Next}}">
<label>Username <input type="text" name="username" autofocus></label>
<label>Password <input type="password" name="password"></label>
<label><input type="checkbox" name="remember_browser" value="on"{{if .Remember}} checked{{end}}> Remember this browser</label>
<button type="submit">Sign in</button>
</form>
{{template "foot" .}}{{end}}

{{define "decide"}}{{template "head" .}}
<h1>Authorize sign-in</h1>
<p><strong>{{.TrustRoot}}</strong> asks to verify your identity <strong>{{.Identity}}</strong>.</p>
{{if .DiscoveryFailed}}<p class="warning">The site could not be verified automatically. Continue only if you recognize it.</p>{{end}}
{{if .SReg}}<p>The following details would be shared:</p>
<ul>{{range $k, $v := .SReg}}<li>{{$k}}: {{$v}}</li>{{end}}</ul>{{end}}
<form method="post" action="/openid/decide/">
<input type="hidden" name="decide_page" value="1">
<button type="submit" name="accept" value="1">Sign in to {{.TrustRoot}}</button>
<button type="submit" name="cancel" value="1">Cancel</button>
</form>
{{template "foot" .}}{{end}}

{{define "openid_info"}}{{template "head" .}}
<h1>OpenID provider</h1>
{{if .OpenIDIdentifier}}
<p>Your OpenID identifier is <a href="{{.OpenIDIdentifier}}">{{.OpenIDIdentifier}}</a>.</p>
{{else}}
<p>This is an OpenID provider endpoint. <a href="/login?next={{.NextEscaped}}">Sign in</a> to use it.</p>
{{end}}
{{template "foot" .}}{{end}}

{{define "identity"}}{{template "head" .}}
<h1>{{.Name}}</h1>
<p>This page is the OpenID identity of {{.Name}}.</p>
{{template "foot" .}}{{end}}

{{define "error"}}{{template "head" .}}
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p><a href="/">Back to front page</a></p>
{{template "foot" .}}{{end}}

{{define "formpost"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Redirecting</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{range $k, $v := .Fields}}<input type="hidden" name="{{$k}}" value="{{$v}}">
{{end}}<noscript><button type="submit">Continue</button></noscript>
</form>
</body></html>{{end}}
`))

func renderPage(w http.ResponseWriter, statusCode int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		httpLogger().Error("template render failed",
			"operation", "render_page",
			"outcome", "failure",
			"template", name,
			"error", err.Error(),
		)
	}
}
