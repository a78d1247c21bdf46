package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/podcraft/backend/internal/account"
	"github.com/podcraft/backend/internal/admin"
	"github.com/podcraft/backend/internal/billing"
	"github.com/podcraft/backend/internal/generation"
	"github.com/podcraft/backend/internal/httpserver"
	"github.com/podcraft/backend/internal/project"
	"github.com/podcraft/backend/internal/store/memstore"
	"github.com/podcraft/backend/pkg/ledger"
)

type testBackend struct {
	router   *gin.Engine
	accounts *memstore.Accounts
}

func newTestBackend(test *testing.T) *testBackend {
	test.Helper()
	tick := int64(1_700_000_000)
	now := func() int64 {
		tick++
		return tick
	}

	accountStore := memstore.NewAccounts()
	projectStore := memstore.NewProjects()
	ledgerStore := memstore.NewLedger()

	credits, err := ledger.NewService(ledgerStore, now)
	if err != nil {
		test.Fatalf("new ledger service: %v", err)
	}
	accounts, err := account.NewService(accountStore, credits, account.Config{
		SigningKey:  []byte("test-signing-key"),
		Issuer:      "podcraft",
		SignupBonus: 100,
	}, now)
	if err != nil {
		test.Fatalf("new account service: %v", err)
	}
	stub := generation.NewStubProvider("")
	projects, err := project.NewService(projectStore, credits, generation.Providers{
		Script: stub, Speech: stub, Image: stub, Video: stub,
	}, project.Config{}, now)
	if err != nil {
		test.Fatalf("new project service: %v", err)
	}
	billingService, err := billing.NewService(credits, billing.Config{})
	if err != nil {
		test.Fatalf("new billing service: %v", err)
	}
	admins, err := admin.NewService(accountStore, projectStore, credits, memstore.NewStats(accountStore, projectStore, ledgerStore), now)
	if err != nil {
		test.Fatalf("new admin service: %v", err)
	}

	cfg := httpserver.Config{TokenSigningKey: "test-signing-key", TokenIssuer: "podcraft"}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate config: %v", err)
	}
	server := httpserver.New(zap.NewNop(), accounts, projects, billingService, admins, credits, cfg)
	return &testBackend{router: server.Router(), accounts: accountStore}
}

func (backend *testBackend) do(test *testing.T, method string, path string, body any, token string) *httptest.ResponseRecorder {
	test.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			test.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	backend.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(test *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	test.Helper()
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		test.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return body
}

func (backend *testBackend) registerAndLogin(test *testing.T, email string) string {
	test.Helper()
	registered := backend.do(test, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":    email,
		"password": "correct-horse",
	}, "")
	if registered.Code != http.StatusCreated {
		test.Fatalf("register returned %d: %s", registered.Code, registered.Body.String())
	}
	loggedIn := backend.do(test, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    email,
		"password": "correct-horse",
	}, "")
	if loggedIn.Code != http.StatusOK {
		test.Fatalf("login returned %d: %s", loggedIn.Code, loggedIn.Body.String())
	}
	token, _ := decodeBody(test, loggedIn)["access_token"].(string)
	if token == "" {
		test.Fatalf("expected an access token")
	}
	return token
}

func (backend *testBackend) balance(test *testing.T, token string) int64 {
	test.Helper()
	response := backend.do(test, http.MethodGet, "/api/v1/credits/balance", nil, token)
	if response.Code != http.StatusOK {
		test.Fatalf("balance returned %d: %s", response.Code, response.Body.String())
	}
	balance, _ := decodeBody(test, response)["balance"].(map[string]any)
	return int64(balance["current_credits"].(float64))
}

func TestRegisterGrantsSignupBonus(test *testing.T) {
	test.Parallel()
	backend := newTestBackend(test)
	token := backend.registerAndLogin(test, "host@example.com")

	if got := backend.balance(test, token); got != 100 {
		test.Fatalf("expected balance 100, got %d", got)
	}

	me := backend.do(test, http.MethodGet, "/api/v1/auth/me", nil, token)
	if me.Code != http.StatusOK {
		test.Fatalf("me returned %d", me.Code)
	}
	user, _ := decodeBody(test, me)["user"].(map[string]any)
	if user["email"] != "host@example.com" {
		test.Fatalf("unexpected me payload: %v", user)
	}
}

func TestProtectedRoutesRejectMissingToken(test *testing.T) {
	test.Parallel()
	backend := newTestBackend(test)

	response := backend.do(test, http.MethodGet, "/api/v1/credits/balance", nil, "")
	if response.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401, got %d", response.Code)
	}
}

func TestLogoutInvalidatesToken(test *testing.T) {
	test.Parallel()
	backend := newTestBackend(test)
	token := backend.registerAndLogin(test, "host@example.com")

	logout := backend.do(test, http.MethodPost, "/api/v1/auth/logout", nil, token)
	if logout.Code != http.StatusOK {
		test.Fatalf("logout returned %d", logout.Code)
	}
	afterLogout := backend.do(test, http.MethodGet, "/api/v1/auth/me", nil, token)
	if afterLogout.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401 after logout, got %d", afterLogout.Code)
	}
}

func TestProjectGenerationChargesCredits(test *testing.T) {
	test.Parallel()
	backend := newTestBackend(test)
	token := backend.registerAndLogin(test, "maker@example.com")

	created := backend.do(test, http.MethodPost, "/api/v1/projects", gin.H{
		"title":       "Deep Sea Radio",
		"description": "bioluminescence",
	}, token)
	if created.Code != http.StatusCreated {
		test.Fatalf("create project returned %d: %s", created.Code, created.Body.String())
	}
	projectBody, _ := decodeBody(test, created)["project"].(map[string]any)
	projectID, _ := projectBody["project_id"].(string)

	generated := backend.do(test, http.MethodPost, "/api/v1/projects/"+projectID+"/generate", nil, token)
	if generated.Code != http.StatusOK {
		test.Fatalf("generate returned %d: %s", generated.Code, generated.Body.String())
	}
	generatedBody, _ := decodeBody(test, generated)["project"].(map[string]any)
	if generatedBody["status"] != "completed" {
		test.Fatalf("expected completed project, got %v", generatedBody["status"])
	}
	if got := backend.balance(test, token); got != 91 {
		test.Fatalf("expected balance 91 after generation, got %d", got)
	}

	transactions := backend.do(test, http.MethodGet, "/api/v1/credits/transactions", nil, token)
	if transactions.Code != http.StatusOK {
		test.Fatalf("transactions returned %d", transactions.Code)
	}
	listed, _ := decodeBody(test, transactions)["transactions"].([]any)
	// Signup bonus plus the platform fee, script, and narration debits.
	if len(listed) != 4 {
		test.Fatalf("expected 4 transactions, got %d", len(listed))
	}
}

func TestPurchaseLifecycleOverHTTP(test *testing.T) {
	test.Parallel()
	backend := newTestBackend(test)
	token := backend.registerAndLogin(test, "buyer@example.com")

	opened := backend.do(test, http.MethodPost, "/api/v1/credits/purchases", gin.H{"credits": 500}, token)
	if opened.Code != http.StatusCreated {
		test.Fatalf("start purchase returned %d: %s", opened.Code, opened.Body.String())
	}
	purchase, _ := decodeBody(test, opened)["purchase"].(map[string]any)
	transactionID, _ := purchase["transaction_id"].(string)
	if purchase["status"] != "pending" || int64(purchase["price_cents"].(float64)) != 1000 {
		test.Fatalf("unexpected purchase payload: %v", purchase)
	}
	if got := backend.balance(test, token); got != 100 {
		test.Fatalf("expected pending purchase to leave balance at 100, got %d", got)
	}

	confirmed := backend.do(test, http.MethodPost, "/api/v1/credits/purchases/"+transactionID+"/confirm", nil, token)
	if confirmed.Code != http.StatusOK {
		test.Fatalf("confirm returned %d: %s", confirmed.Code, confirmed.Body.String())
	}
	if got := backend.balance(test, token); got != 600 {
		test.Fatalf("expected balance 600 after confirmation, got %d", got)
	}
}

func TestInsufficientCreditsMapsToPaymentRequired(test *testing.T) {
	test.Parallel()
	backend := newTestBackend(test)
	operatorToken := backend.registerAndLogin(test, "root@example.com")
	backend.promoteToAdmin(test, "root@example.com")

	memberToken := backend.registerAndLogin(test, "broke@example.com")
	member := backend.do(test, http.MethodGet, "/api/v1/auth/me", nil, memberToken)
	memberUser, _ := decodeBody(test, member)["user"].(map[string]any)
	memberID, _ := memberUser["user_id"].(string)

	lowered := backend.do(test, http.MethodPut, "/api/v1/admin/users/"+memberID+"/balance", gin.H{"balance": 5}, operatorToken)
	if lowered.Code != http.StatusOK {
		test.Fatalf("set balance returned %d: %s", lowered.Code, lowered.Body.String())
	}

	created := backend.do(test, http.MethodPost, "/api/v1/projects", gin.H{"title": "Too Poor To Pod"}, memberToken)
	projectBody, _ := decodeBody(test, created)["project"].(map[string]any)
	projectID, _ := projectBody["project_id"].(string)

	generated := backend.do(test, http.MethodPost, "/api/v1/projects/"+projectID+"/generate", nil, memberToken)
	if generated.Code != http.StatusPaymentRequired {
		test.Fatalf("expected 402, got %d: %s", generated.Code, generated.Body.String())
	}
}

func TestAdminRoutesRequireAdminFlag(test *testing.T) {
	test.Parallel()
	backend := newTestBackend(test)
	token := backend.registerAndLogin(test, "plain@example.com")

	forbidden := backend.do(test, http.MethodGet, "/api/v1/admin/stats", nil, token)
	if forbidden.Code != http.StatusForbidden {
		test.Fatalf("expected 403, got %d", forbidden.Code)
	}

	backend.promoteToAdmin(test, "plain@example.com")
	allowed := backend.do(test, http.MethodGet, "/api/v1/admin/stats", nil, token)
	if allowed.Code != http.StatusOK {
		test.Fatalf("expected 200 after promotion, got %d", allowed.Code)
	}
	stats, _ := decodeBody(test, allowed)["stats"].(map[string]any)
	if int64(stats["total_users"].(float64)) != 1 {
		test.Fatalf("unexpected stats payload: %v", stats)
	}
}

func TestAdminGrantCreditsOverHTTP(test *testing.T) {
	test.Parallel()
	backend := newTestBackend(test)
	operatorToken := backend.registerAndLogin(test, "root@example.com")
	backend.promoteToAdmin(test, "root@example.com")

	memberToken := backend.registerAndLogin(test, "member@example.com")
	member := backend.do(test, http.MethodGet, "/api/v1/auth/me", nil, memberToken)
	memberUser, _ := decodeBody(test, member)["user"].(map[string]any)
	memberID, _ := memberUser["user_id"].(string)

	granted := backend.do(test, http.MethodPost, "/api/v1/admin/users/"+memberID+"/credits", gin.H{
		"credits": 50,
		"reason":  "launch promo",
	}, operatorToken)
	if granted.Code != http.StatusOK {
		test.Fatalf("grant returned %d: %s", granted.Code, granted.Body.String())
	}
	if got := backend.balance(test, memberToken); got != 150 {
		test.Fatalf("expected balance 150 after grant, got %d", got)
	}
}

func (backend *testBackend) promoteToAdmin(test *testing.T, email string) {
	test.Helper()
	user, err := backend.accounts.GetUserByEmail(context.Background(), email)
	if err != nil {
		test.Fatalf("load user %s: %v", email, err)
	}
	user.IsAdmin = true
	if err := backend.accounts.UpdateUser(context.Background(), user); err != nil {
		test.Fatalf("promote user %s: %v", email, err)
	}
}
