package template

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/ghaggin/accountconsole/internal/model"
)

const (
	templateDir string = "tmpl"
)

//go:embed tmpl/*.html
var files embed.FS

type Flash struct {
	Kind    string
	Message string
}

type Data struct {
	PageTitle string
	User      *model.User
	Flashes   []Flash

	// page specific
	Users   []model.User
	Roles   []model.Role
	Profile model.ProfileForm
	Editing bool
}

// IsAdmin reports whether the navigation should offer the admin panel.
func (d *Data) IsAdmin() bool {
	return d.User != nil && d.User.Role.CanManageUsers()
}

func Render(w http.ResponseWriter, r *http.Request, tmpl string, td any) error {
	t, err := template.ParseFS(files,
		templateDir+"/"+tmpl,
		templateDir+"/"+"base.html",
	)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}

	err = t.ExecuteTemplate(buf, "base.html", td)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}
