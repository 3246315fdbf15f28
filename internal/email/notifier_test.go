package email

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type sent struct {
	to, subject, html, text string
}

type recordingSender struct {
	msgs []sent
	err  error
}

func (r *recordingSender) Send(to, subject, html, text string) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, sent{to, subject, html, text})
	return nil
}

func TestSendTemplatedMessage(t *testing.T) {
	rs := &recordingSender{}
	n, err := NewTemplateNotifier(rs)
	require.NoError(t, err)
	project := &repository.Project{ID: "p1", DisplayName: "Acme"}

	err = n.SendTemplatedMessage(context.Background(), project, "ana@example.com", TemplateSignInCode, map[string]any{
		"otp":  "ABC123",
		"link": "https://app.example.com/handler/magic-link-callback?code=xyz",
	})
	require.NoError(t, err)
	require.Len(t, rs.msgs, 1)
	m := rs.msgs[0]
	assert.Equal(t, "ana@example.com", m.to)
	assert.Equal(t, "Sign in to Acme: your code is ABC123", m.subject)
	assert.Contains(t, m.text, "https://app.example.com/handler/magic-link-callback?code=xyz")
	assert.Contains(t, m.html, "<b>ABC123</b>")
}

func TestSendTemplatedMessage_EscapesHTML(t *testing.T) {
	rs := &recordingSender{}
	n, err := NewTemplateNotifier(rs)
	require.NoError(t, err)

	err = n.SendTemplatedMessage(context.Background(), &repository.Project{ID: "p1"}, "ana@example.com", TemplateTeamInvitation, map[string]any{
		"team_display_name": "<script>x</script>",
		"link":              "https://app.example.com/invite?code=1",
	})
	require.NoError(t, err)
	assert.NotContains(t, rs.msgs[0].html, "<script>")
	assert.Contains(t, rs.msgs[0].subject, "on p1")
}

func TestSendTemplatedMessage_Errors(t *testing.T) {
	rs := &recordingSender{}
	n, err := NewTemplateNotifier(rs)
	require.NoError(t, err)
	p := &repository.Project{ID: "p1"}
	ctx := context.Background()

	assert.ErrorIs(t, n.SendTemplatedMessage(ctx, p, "a@b.co", Template("nope"), nil), ErrUnknownTemplate)
	assert.Error(t, n.SendTemplatedMessage(ctx, p, " ", TemplatePasswordReset, nil))

	rs.err = errors.New("535 authentication failed")
	assert.ErrorIs(t, n.SendTemplatedMessage(ctx, p, "a@b.co", TemplatePasswordReset, nil), ErrSendFailed)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "read: i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestDiagnoseSMTP(t *testing.T) {
	cases := []struct {
		msg  string
		want SMTPDiag
	}{
		{"535 5.7.8 Username and Password not accepted", SMTPDiag{Code: "auth"}},
		{"dial tcp 10.0.0.1:587: connection refused", SMTPDiag{Code: "dial", Temporary: true}},
		{"x509: certificate signed by unknown authority", SMTPDiag{Code: "tls"}},
		{"421 4.7.0 Try again later", SMTPDiag{Code: "rate_limited", Temporary: true}},
		{"550 5.1.1 user unknown", SMTPDiag{Code: "invalid_recipient"}},
		{"something else", SMTPDiag{Code: "unknown"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DiagnoseSMTP(errors.New(tc.msg)), tc.msg)
	}
	assert.Equal(t, SMTPDiag{Code: "timeout", Temporary: true}, DiagnoseSMTP(timeoutErr{}))
}
