package email

import (
	"bytes"
	"fmt"
	htemplate "html/template"
	ttemplate "text/template"
)

// Template identifica un mensaje transaccional.
type Template string

const (
	TemplateEmailVerification Template = "email_verification"
	TemplatePasswordReset     Template = "password_reset"
	TemplateSignInCode        Template = "sign_in_code"
	TemplateTeamInvitation    Template = "team_invitation"
)

type templateSet struct {
	subject *ttemplate.Template
	text    *ttemplate.Template
	html    *htemplate.Template
}

type templateSource struct {
	subject, text, html string
}

var defaultSources = map[Template]templateSource{
	TemplateEmailVerification: {
		subject: "Verify your email at {{.project_display_name}}",
		text:    "Hi {{.user_display_name}},\n\nPlease verify your email by opening this link:\n{{.link}}\n",
		html:    `<p>Hi {{.user_display_name}},</p><p>Please verify your email by opening <a href="{{.link}}">this link</a>.</p>`,
	},
	TemplatePasswordReset: {
		subject: "Reset your password at {{.project_display_name}}",
		text:    "Hi {{.user_display_name}},\n\nReset your password here:\n{{.link}}\n\nIf you did not ask for this, ignore this email.\n",
		html:    `<p>Hi {{.user_display_name}},</p><p><a href="{{.link}}">Reset your password</a>.</p><p>If you did not ask for this, ignore this email.</p>`,
	},
	TemplateSignInCode: {
		subject: "Sign in to {{.project_display_name}}: your code is {{.otp}}",
		text:    "Your sign-in code is {{.otp}}\n\nOr open this link:\n{{.link}}\n",
		html:    `<p>Your sign-in code is <b>{{.otp}}</b>.</p><p>Or <a href="{{.link}}">sign in with this link</a>.</p>`,
	},
	TemplateTeamInvitation: {
		subject: "You have been invited to join {{.team_display_name}} on {{.project_display_name}}",
		text:    "Hi {{.user_display_name}},\n\nYou have been invited to join {{.team_display_name}}. Accept here:\n{{.link}}\n",
		html:    `<p>Hi {{.user_display_name}},</p><p>You have been invited to join <b>{{.team_display_name}}</b>. <a href="{{.link}}">Accept the invitation</a>.</p>`,
	},
}

func parseTemplates() (map[Template]templateSet, error) {
	out := make(map[Template]templateSet, len(defaultSources))
	for name, src := range defaultSources {
		subj, err := ttemplate.New(string(name) + "_subject").Option("missingkey=zero").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", name, err)
		}
		text, err := ttemplate.New(string(name) + "_text").Option("missingkey=zero").Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s text: %w", name, err)
		}
		html, err := htemplate.New(string(name) + "_html").Option("missingkey=zero").Parse(src.html)
		if err != nil {
			return nil, fmt.Errorf("parse %s html: %w", name, err)
		}
		out[name] = templateSet{subject: subj, text: text, html: html}
	}
	return out, nil
}

func (t templateSet) render(vars map[string]any) (subject, html, text string, err error) {
	var sb, hb, tb bytes.Buffer
	if err = t.subject.Execute(&sb, vars); err != nil {
		return
	}
	if err = t.html.Execute(&hb, vars); err != nil {
		return
	}
	if err = t.text.Execute(&tb, vars); err != nil {
		return
	}
	return sb.String(), hb.String(), tb.String(), nil
}
