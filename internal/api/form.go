package api

import "html/template"

// loginFormData feeds the self-submitting login page. Secret is the user's
// platform login secret; the page exists precisely to hand it to the
// platform's login endpoint from the browser, so it appears here once and
// is never cached (the handler sets Cache-Control: no-store).
type loginFormData struct {
	LoginURL   string
	LandingURL string
	Email      string
	Secret     string
}

// loginFormTemplate posts the credentials to the platform's JSON login
// endpoint with fetch and then navigates to the landing page. A plain HTML
// form cannot be used: the endpoint accepts only a JSON body. The
// navigation happens even if the fetch fails — the platform's login page
// is the natural place for the user to land in that case too.
var loginFormTemplate = template.Must(template.New("login_form").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="robots" content="noindex">
  <title>Signing you in…</title>
</head>
<body>
  <p>Signing you in…</p>
  <noscript><p>JavaScript is required to complete sign-in. <a href="{{.LandingURL}}">Continue</a></p></noscript>
  <script>
    (async function () {
      try {
        await fetch({{.LoginURL}}, {
          method: "POST",
          credentials: "include",
          headers: {"Content-Type": "application/json"},
          body: JSON.stringify({
            emailOrLdapLoginId: {{.Email}},
            password: {{.Secret}}
          })
        });
      } catch (e) {
        // Fall through to the redirect; the platform will ask for login.
      }
      window.location.replace({{.LandingURL}});
    })();
  </script>
</body>
</html>
`))
