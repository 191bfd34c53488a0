package api

import (
	"html/template"
	"net/http"

	"github.com/foxzi/renewly/internal/client"
)

// formData feeds the response form template
type formData struct {
	Name       string
	ExpiryDate string
}

const formPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Subscription Renewal</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #f4f6f8; margin: 0; }
.card { max-width: 480px; margin: 60px auto; background: #fff; border-radius: 8px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,.08); }
h1 { font-size: 22px; color: #1a2b4a; margin-top: 0; }
p { color: #444; line-height: 1.5; }
.buttons { display: flex; gap: 12px; margin-top: 24px; }
button { flex: 1; padding: 12px; border: 0; border-radius: 6px; font-size: 15px; cursor: pointer; }
.yes { background: #2d7a46; color: #fff; }
.no { background: #e4e7eb; color: #333; }
.result { margin-top: 20px; padding: 12px; border-radius: 6px; display: none; }
.result.ok { background: #e6f4ea; color: #1e4620; display: block; }
.result.err { background: #fdecea; color: #7a1c12; display: block; }
</style>
</head>
<body>
<div class="card">
<h1>Subscription Renewal</h1>
<p>Hello {{.Name}},</p>
<p>Your subscription expires on <strong>{{.ExpiryDate}}</strong>. Would you like to renew it?</p>
<div class="buttons">
<button class="yes" onclick="submitResponse('Interested')">Yes, renew</button>
<button class="no" onclick="submitResponse('Not Interested')">No, thanks</button>
</div>
<div id="result" class="result"></div>
</div>
<script>
async function submitResponse(response) {
  const result = document.getElementById('result');
  try {
    const res = await fetch(window.location.pathname, {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({response: response})
    });
    const data = await res.json();
    if (res.ok) {
      result.className = 'result ok';
      result.textContent = data.message;
      document.querySelectorAll('button').forEach(b => b.disabled = true);
    } else {
      result.className = 'result err';
      result.textContent = data.error;
    }
  } catch (e) {
    result.className = 'result err';
    result.textContent = 'Something went wrong. Please try again.';
  }
}
</script>
</body>
</html>`

const errorPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Link Unavailable</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #f4f6f8; margin: 0; }
.card { max-width: 480px; margin: 60px auto; background: #fff; border-radius: 8px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,.08); text-align: center; }
h1 { font-size: 22px; color: #7a1c12; }
p { color: #444; line-height: 1.5; }
</style>
</head>
<body>
<div class="card">
<h1>Link Unavailable</h1>
<p>This link is invalid or has expired.</p>
<p>If you believe this is a mistake, please contact support.</p>
</div>
</body>
</html>`

var (
	formTmpl = template.Must(template.New("form").Parse(formPage))
)

// renderFormPage renders the renewal response form for a resolved record.
func (s *Server) renderFormPage(w http.ResponseWriter, rec *client.Record) {
	expiry := client.FormatHumanDate(rec.ExpiryDate)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := formTmpl.Execute(w, formData{Name: rec.Name, ExpiryDate: expiry}); err != nil {
		s.logger.Error("failed to render response form", "error", err)
	}
}

// renderErrorPage renders the generic link-unavailable page. The page
// never says why the link was rejected.
func (s *Server) renderErrorPage(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(errorPage))
}
