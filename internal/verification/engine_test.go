package verification

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/store/memory"
)

type testData struct {
	UserID string `json:"user_id"`
	TeamID string `json:"team_id,omitempty"`
}

func (d testData) Validate() error {
	if d.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

type testMethod struct {
	Email string `json:"email"`
}

func (m testMethod) Validate() error {
	if !strings.Contains(m.Email, "@") {
		return errors.New("email is invalid")
	}
	return nil
}

type testBody struct {
	Value string
}

func (b testBody) Validate() error {
	if b.Value == "" {
		return errors.New("value is required")
	}
	return nil
}

type fixture struct {
	store    *memory.Store
	project  *repository.Project
	now      time.Time
	consumed int32
	fail     error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		store: memory.New(),
		project: &repository.Project{ID: "p1", Config: repository.ProjectConfig{
			Domains: []repository.Domain{{Domain: "https://app.example.com", HandlerPath: "/handler"}},
		}},
		now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) deps() Deps {
	return Deps{Codes: f.store.VerificationCodes(), Tx: f.store, Now: func() time.Time { return f.now }}
}

func (f *fixture) engine(t repository.VerificationCodeType) *Engine[testData, testMethod, testBody, string] {
	return New(Handler[testData, testMethod, testBody, string]{
		Type: t,
		Consume: func(ctx context.Context, in Input[testData, testMethod, testBody]) (string, error) {
			// side effect observable para verificar rollback
			if err := f.store.Users().Create(ctx, &repository.User{ID: in.CodeID, TenantID: in.Project.ID}); err != nil {
				return "", err
			}
			if f.fail != nil {
				return "", f.fail
			}
			atomic.AddInt32(&f.consumed, 1)
			return in.Data.UserID + ":" + in.Body.Value, nil
		},
		Details: func(ctx context.Context, in Input[testData, testMethod, testBody]) (any, error) {
			return map[string]string{"team_id": in.Data.TeamID}, nil
		},
	}, f.deps())
}

func (f *fixture) create(t *testing.T, e *Engine[testData, testMethod, testBody, string]) *Code {
	t.Helper()
	code, err := e.CreateCode(context.Background(), CreateOptions[testData, testMethod]{
		Project: f.project,
		Method:  testMethod{Email: "a@example.com"},
		Data:    testData{UserID: "u1", TeamID: "t1"},
	})
	require.NoError(t, err)
	return code
}

func (f *fixture) use(e *Engine[testData, testMethod, testBody, string], code string) (string, error) {
	return e.UseCode(context.Background(), Request[testBody]{Project: f.project, Code: code, Body: testBody{Value: "v"}})
}

func TestCreateCode_DefaultsAndLink(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeEmailVerification)

	code := f.create(t, e)
	assert.Len(t, code.Code, 45)
	assert.Equal(t, f.now.Add(DefaultExpiry), code.ExpiresAt)
	assert.Empty(t, code.Link)

	withLink, err := e.CreateCode(context.Background(), CreateOptions[testData, testMethod]{
		Project: f.project, Method: testMethod{Email: "a@example.com"}, Data: testData{UserID: "u1"},
		CallbackURL: "https://app.example.com/handler/verify?x=1", ExpiresIn: time.Hour,
	})
	require.NoError(t, err)
	u, err := url.Parse(withLink.Link)
	require.NoError(t, err)
	assert.Equal(t, withLink.Code, u.Query().Get("code"))
	assert.Equal(t, "1", u.Query().Get("x"))
	assert.Equal(t, f.now.Add(time.Hour), withLink.ExpiresAt)

	// el secreto no se persiste en claro
	rows, err := f.store.VerificationCodes().ListActive(context.Background(), "p1", repository.CodeTypeEmailVerification, f.now)
	require.NoError(t, err)
	for _, r := range rows {
		assert.NotEqual(t, code.Code, r.CodeHash)
	}
}

func TestCreateCode_Rejections(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeEmailVerification)
	ctx := context.Background()

	_, err := e.CreateCode(ctx, CreateOptions[testData, testMethod]{Project: f.project, Method: testMethod{Email: "a@example.com"}})
	assert.True(t, autherr.HasCode(err, autherr.CodeInvalidInput))

	_, err = e.CreateCode(ctx, CreateOptions[testData, testMethod]{Project: f.project, Method: testMethod{Email: "nope"}, Data: testData{UserID: "u"}})
	assert.True(t, autherr.HasCode(err, autherr.CodeInvalidInput))

	_, err = e.CreateCode(ctx, CreateOptions[testData, testMethod]{
		Project: f.project, Method: testMethod{Email: "a@example.com"}, Data: testData{UserID: "u"},
		CallbackURL: "https://evil.example.net/cb",
	})
	assert.True(t, autherr.HasCode(err, autherr.CodeRedirectURLNotWhitelisted))

	_, _, err = e.SendCode(ctx, CreateOptions[testData, testMethod]{Project: f.project, Method: testMethod{Email: "a@example.com"}, Data: testData{UserID: "u"}}, SendOptions{})
	assert.True(t, autherr.HasCode(err, autherr.CodeNotSupported))
}

func TestUseCode_SingleUse(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeOneTimePassword)
	code := f.create(t, e)

	res, err := f.use(e, code.Code)
	require.NoError(t, err)
	assert.Equal(t, "u1:v", res)

	_, err = f.use(e, code.Code)
	assert.True(t, autherr.HasCode(err, autherr.CodeVerificationCodeAlreadyUsed))

	// el OTP se tipea en mayúscula
	other := f.create(t, e)
	_, err = f.use(e, strings.ToUpper(other.Code))
	require.NoError(t, err)
}

func TestUseCode_StateErrors(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeOneTimePassword)

	_, err := f.use(e, "does-not-exist")
	assert.True(t, autherr.HasCode(err, autherr.CodeVerificationCodeNotFound))

	code := f.create(t, e)
	f.now = f.now.Add(DefaultExpiry)
	_, err = f.use(e, code.Code)
	assert.True(t, autherr.HasCode(err, autherr.CodeVerificationCodeExpired), "expires_at == now is expired")

	// usado y además expirado: gana expirado
	f.now = f.now.Add(-DefaultExpiry)
	used := f.create(t, e)
	_, err = f.use(e, used.Code)
	require.NoError(t, err)
	f.now = f.now.Add(2 * DefaultExpiry)
	_, err = f.use(e, used.Code)
	assert.True(t, autherr.HasCode(err, autherr.CodeVerificationCodeExpired))
}

func TestUseCode_ScopedByTenantAndType(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeOneTimePassword)
	code := f.create(t, e)

	other := &repository.Project{ID: "p2"}
	_, err := e.UseCode(context.Background(), Request[testBody]{Project: other, Code: code.Code, Body: testBody{Value: "v"}})
	assert.True(t, autherr.HasCode(err, autherr.CodeVerificationCodeNotFound))

	_, err = f.use(f.engine(repository.CodeTypePasswordReset), code.Code)
	assert.True(t, autherr.HasCode(err, autherr.CodeVerificationCodeNotFound))

	_, err = f.use(e, code.Code)
	require.NoError(t, err)
}

func TestUseCode_ExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeOneTimePassword)
	code := f.create(t, e)

	const n = 25
	var ok, used int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.use(e, code.Code)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case autherr.HasCode(err, autherr.CodeVerificationCodeAlreadyUsed):
				atomic.AddInt32(&used, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, n-1, used)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.consumed))
}

func TestUseCode_SideEffectErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeOneTimePassword)
	code := f.create(t, e)

	f.fail = autherr.ErrSignUpNotEnabled
	_, err := f.use(e, code.Code)
	assert.True(t, autherr.HasCode(err, autherr.CodeSignUpNotEnabled))

	// ni el used_at ni el side effect parcial quedaron
	_, err = f.store.Users().GetByID(context.Background(), "p1", code.ID)
	assert.True(t, repository.IsNotFound(err))
	require.NoError(t, e.CheckCode(context.Background(), Request[testBody]{Project: f.project, Code: code.Code}))

	f.fail = nil
	_, err = f.use(e, code.Code)
	require.NoError(t, err)
}

func TestUseCode_MfaRequiredCommitsConsumption(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeOneTimePassword)
	code := f.create(t, e)

	f.fail = autherr.MultiFactorAuthenticationRequired("attempt-123")
	_, err := f.use(e, code.Code)
	attempt, ok := autherr.AttemptCode(err)
	require.True(t, ok)
	assert.Equal(t, "attempt-123", attempt)

	f.fail = nil
	_, err = f.use(e, code.Code)
	assert.True(t, autherr.HasCode(err, autherr.CodeVerificationCodeAlreadyUsed))
}

func TestUseCode_InvalidBodyDoesNotConsume(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeOneTimePassword)
	code := f.create(t, e)

	_, err := e.UseCode(context.Background(), Request[testBody]{Project: f.project, Code: code.Code})
	assert.True(t, autherr.HasCode(err, autherr.CodeSchemaError))

	_, err = f.use(e, code.Code)
	require.NoError(t, err)
}

func TestCheckAndDetails_DoNotConsume(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeTeamInvitation)
	code := f.create(t, e)
	ctx := context.Background()
	req := Request[testBody]{Project: f.project, Code: code.Code}

	require.NoError(t, e.CheckCode(ctx, req))
	details, err := e.GetDetails(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team_id": "t1"}, details)
	assert.EqualValues(t, 0, f.consumed)

	_, err = f.use(e, code.Code)
	require.NoError(t, err)
	assert.True(t, autherr.HasCode(e.CheckCode(ctx, req), autherr.CodeVerificationCodeAlreadyUsed))

	noDetails := New(Handler[testData, testMethod, testBody, string]{
		Type:    repository.CodeTypeTeamInvitation,
		Consume: func(context.Context, Input[testData, testMethod, testBody]) (string, error) { return "", nil },
	}, f.deps())
	_, err = noDetails.GetDetails(ctx, req)
	assert.True(t, autherr.HasCode(err, autherr.CodeNotSupported))
}

func TestRevokeAndList(t *testing.T) {
	f := newFixture(t)
	e := f.engine(repository.CodeTypeTeamInvitation)
	ctx := context.Background()

	a := f.create(t, e)
	_, err := e.CreateCode(ctx, CreateOptions[testData, testMethod]{
		Project: f.project, Method: testMethod{Email: "b@example.com"}, Data: testData{UserID: "u2", TeamID: "t2"},
	})
	require.NoError(t, err)

	list, err := e.ListCodes(ctx, f.project, func(d testData) bool { return d.TeamID == "t1" })
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, "a@example.com", list[0].Method.Email)

	require.NoError(t, e.RevokeCode(ctx, f.project, a.ID))
	assert.True(t, autherr.HasCode(e.RevokeCode(ctx, f.project, a.ID), autherr.CodeVerificationCodeNotFound))
	_, err = f.use(e, a.Code)
	assert.True(t, autherr.HasCode(err, autherr.CodeVerificationCodeAlreadyUsed))

	all, err := e.ListCodes(ctx, f.project, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

type recordingObserver struct {
	mu       sync.Mutex
	created  int
	outcomes []string
}

func (r *recordingObserver) CodeCreated(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *recordingObserver) CodeUsed(_ string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestObserver(t *testing.T) {
	f := newFixture(t)
	obs := &recordingObserver{}
	deps := f.deps()
	deps.Observer = obs
	e := New(Handler[testData, testMethod, testBody, string]{
		Type:    repository.CodeTypeOneTimePassword,
		Consume: func(context.Context, Input[testData, testMethod, testBody]) (string, error) { return "ok", nil },
	}, deps)
	code := f.create(t, e)
	_, _ = f.use(e, code.Code)
	_, _ = f.use(e, code.Code)

	assert.Equal(t, 1, obs.created)
	assert.Equal(t, []string{"ok", string(autherr.CodeVerificationCodeAlreadyUsed)}, obs.outcomes)
}
