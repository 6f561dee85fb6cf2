package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/router"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Pages 持有本地页面处理器，日志用于记录表单提交。
type Pages struct {
	logger *logrus.Logger
}

// Register 在路由器上按固定顺序注册内置页面。
func Register(r *router.Router, logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Pages{logger: logger}

	routes := []struct {
		method  string
		pattern string
		handler router.Handler
	}{
		{fiber.MethodGet, "/form", p.form},
		{fiber.MethodPost, "/form", p.acceptForm},
		{fiber.MethodGet, "/hello", p.hello},
		{fiber.MethodPost, "/hello", p.helloPartial},
		{fiber.MethodPost, "/{name}/clicked", p.clicked},
	}
	for _, route := range routes {
		if err := r.Handle(route.method, route.pattern, route.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", route.method, route.pattern, err)
		}
	}
	return nil
}

func (p *Pages) form(c fiber.Ctx, _ *router.State) error {
	return render(c, "form.html", nil)
}

type formInput struct {
	Email string
	Name  string
}

func (p *Pages) acceptForm(c fiber.Ctx, _ *router.State) error {
	input := formInput{
		Email: c.FormValue("email"),
		Name:  c.FormValue("name"),
	}
	if missing := input.missing(); missing != "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "missing form field: "+missing)
	}
	p.logger.WithFields(logrus.Fields{
		"action": "form_submit",
		"email":  input.Email,
		"name":   input.Name,
	}).Info("form_accepted")
	return render(c, "form_result.html", input)
}

func (p *Pages) hello(c fiber.Ctx, _ *router.State) error {
	return render(c, "hello.html", nil)
}

func (p *Pages) helloPartial(c fiber.Ctx, _ *router.State) error {
	name := c.FormValue("name")
	if name == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "missing form field: name")
	}
	return render(c, "hello_partial.html", struct{ Name string }{Name: name})
}

// clicked 把共享计数器加一，响应中返回新值。
func (p *Pages) clicked(c fiber.Ctx, state *router.State) error {
	count, err := state.Increment()
	if err != nil {
		return err
	}
	return render(c, "clicked.html", struct {
		Name  string
		Count int64
	}{Name: c.Params("name"), Count: count})
}

func render(c fiber.Ctx, name string, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("%w: render %s: %v", router.ErrHandlerFault, name, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

func (in formInput) missing() string {
	var fields []string
	if in.Email == "" {
		fields = append(fields, "email")
	}
	if in.Name == "" {
		fields = append(fields, "name")
	}
	return strings.Join(fields, ",")
}
