package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richardliu001/shop-ledger/internal/auth"
	"github.com/richardliu001/shop-ledger/internal/config"
	"github.com/richardliu001/shop-ledger/internal/filestore"
	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/richardliu001/shop-ledger/internal/repo"
	"github.com/richardliu001/shop-ledger/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type apiEnv struct {
	router *gin.Engine
	tokens *auth.Provider
	repo   *repo.Repository
	db     *gorm.DB
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, nil, nil, log)
	l := service.NewLedger(r, log)
	files := filestore.NewLocal(t.TempDir(), filestore.DefaultMaxBytes, log)
	h := NewHandler(l,
		service.NewDepositService(r, l, files, service.DefaultDepositLimits(), log),
		service.NewOrderService(r, l, log),
		filestore.DefaultMaxBytes,
	)
	tokens := auth.NewProvider("test-secret", time.Hour)
	router := NewRouter(h, tokens, config.RateLimitConfig{RPS: 1000, Burst: 1000}, log)
	return &apiEnv{router: router, tokens: tokens, repo: r, db: db}
}

func (e *apiEnv) seedUser(t *testing.T, id uint64, balance int64) string {
	t.Helper()
	require.NoError(t, e.repo.CreateUser(context.Background(), e.db, &model.User{ID: id, Balance: decimal.NewFromInt(balance)}))
	return e.token(t, id, auth.RoleUser)
}

func (e *apiEnv) token(t *testing.T, id uint64, role auth.Role) string {
	t.Helper()
	tok, err := e.tokens.Issue(id, role)
	require.NoError(t, err)
	return tok
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, kind service.Kind) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	decode(t, w, &body)
	assert.Equal(t, string(kind), body.Error)
	assert.NotEmpty(t, body.Message)
}

func (e *apiEnv) balance(t *testing.T, token string) decimal.Decimal {
	t.Helper()
	w := e.do(t, http.MethodGet, "/v1/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Balance decimal.Decimal `json:"balance"`
	}
	decode(t, w, &body)
	return body.Balance
}

func TestRouter_Auth(t *testing.T) {
	env := newAPIEnv(t)
	user := env.seedUser(t, 1, 0)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/balance", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/balance", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/v1/admin/deposits/1/confirm", user, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "", nil).Code)
}

func TestRouter_DepositFlow(t *testing.T) {
	env := newAPIEnv(t)
	user := env.seedUser(t, 1, 100_000)
	admin := env.token(t, 99, auth.RoleAdmin)

	w := env.do(t, http.MethodPost, "/v1/deposits", user, gin.H{"amount": "20000", "method": "bank_transfer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dep model.Deposit
	decode(t, w, &dep)
	assert.Equal(t, model.DepositPending, dep.Status)
	assert.True(t, env.balance(t, user).Equal(decimal.NewFromInt(100_000)))

	path := fmt.Sprintf("/v1/admin/deposits/%d/confirm", dep.ID)
	w = env.do(t, http.MethodPost, path, admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &dep)
	assert.Equal(t, model.DepositSuccess, dep.Status)
	require.NotNil(t, dep.ConfirmedBy)
	assert.Equal(t, uint64(99), *dep.ConfirmedBy)

	assertError(t, env.do(t, http.MethodPost, path, admin, nil), http.StatusConflict, service.KindAlreadyFinalized)
	assert.True(t, env.balance(t, user).Equal(decimal.NewFromInt(120_000)))

	w = env.do(t, http.MethodGet, "/v1/deposits", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Deposit
	decode(t, w, &list)
	assert.Len(t, list, 1)
}

func TestRouter_DepositValidation(t *testing.T) {
	env := newAPIEnv(t)
	user := env.seedUser(t, 1, 0)

	assertError(t, env.do(t, http.MethodPost, "/v1/deposits", user, gin.H{"amount": "500", "method": "bank"}),
		http.StatusBadRequest, service.KindValidation)
	assertError(t, env.do(t, http.MethodPost, "/v1/deposits", user, gin.H{"amount": "abc", "method": "bank"}),
		http.StatusBadRequest, service.KindValidation)
	assertError(t, env.do(t, http.MethodGet, "/v1/deposits/x", user, nil),
		http.StatusBadRequest, service.KindValidation)
	assertError(t, env.do(t, http.MethodGet, "/v1/deposits/12345", user, nil),
		http.StatusNotFound, service.KindNotFound)
}

func TestRouter_OrderPayCancel(t *testing.T) {
	env := newAPIEnv(t)
	user := env.seedUser(t, 1, 100_000)
	other := env.seedUser(t, 2, 0)

	w := env.do(t, http.MethodPost, "/v1/orders", user, gin.H{"product_name": "Keyboard", "quantity": 2, "price": "30000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ord model.Order
	decode(t, w, &ord)
	assert.True(t, ord.TotalPrice.Equal(decimal.NewFromInt(60_000)))

	assertError(t, env.do(t, http.MethodGet, fmt.Sprintf("/v1/orders/%d", ord.ID), other, nil),
		http.StatusNotFound, service.KindNotFound)

	pay := fmt.Sprintf("/v1/orders/%d/pay", ord.ID)
	w = env.do(t, http.MethodPost, pay, user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.balance(t, user).Equal(decimal.NewFromInt(40_000)))
	assertError(t, env.do(t, http.MethodPost, pay, user, nil), http.StatusConflict, service.KindAlreadyPaid)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/v1/orders/%d/cancel", ord.ID), user, gin.H{"reason": "changed mind"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &ord)
	assert.Equal(t, model.OrderCancelled, ord.Status)
	assert.Contains(t, ord.Notes, "Cancelled: changed mind")
	assert.True(t, env.balance(t, user).Equal(decimal.NewFromInt(100_000)))

	w = env.do(t, http.MethodGet, "/v1/history", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []model.TransactionLog
	decode(t, w, &logs)
	require.Len(t, logs, 2)
	assert.Equal(t, model.TxOrder, logs[0].Type)
	assert.Equal(t, model.TxRefund, logs[1].Type)

	w = env.do(t, http.MethodGet, "/v1/orders?status=cancelled", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []model.Order
	decode(t, w, &orders)
	assert.Len(t, orders, 1)
	assertError(t, env.do(t, http.MethodGet, "/v1/orders?status=bogus", user, nil),
		http.StatusBadRequest, service.KindValidation)
}

func TestRouter_CancelRejectsMalformedBody(t *testing.T) {
	env := newAPIEnv(t)
	user := env.seedUser(t, 1, 10_000)

	w := env.do(t, http.MethodPost, "/v1/orders", user, gin.H{"product_name": "Cable", "quantity": 1, "price": "500"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ord model.Order
	decode(t, w, &ord)
	path := fmt.Sprintf("/v1/orders/%d/cancel", ord.ID)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"reason": `))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+user)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assertError(t, w, http.StatusBadRequest, service.KindValidation)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/orders/%d", ord.ID), user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &ord)
	assert.Equal(t, model.OrderPending, ord.Status)

	// no body at all still cancels
	w = env.do(t, http.MethodPost, path, user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &ord)
	assert.Equal(t, model.OrderCancelled, ord.Status)
}

func TestRouter_InsufficientFundsAndComplete(t *testing.T) {
	env := newAPIEnv(t)
	user := env.seedUser(t, 1, 5_000)
	admin := env.token(t, 99, auth.RoleAdmin)

	assertError(t, env.do(t, http.MethodPost, "/v1/orders", user, gin.H{"product_name": "Mouse", "quantity": 1, "price": "10000"}),
		http.StatusUnprocessableEntity, service.KindInsufficientFunds)

	w := env.do(t, http.MethodPost, "/v1/orders", user, gin.H{"product_name": "Sticker", "quantity": 1, "price": "1000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ord model.Order
	decode(t, w, &ord)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/v1/admin/orders/%d/complete", ord.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &ord)
	assert.Equal(t, model.OrderCompleted, ord.Status)
	assert.NotNil(t, ord.CompletedAt)

	assertError(t, env.do(t, http.MethodPost, fmt.Sprintf("/v1/orders/%d/cancel", ord.ID), user, nil),
		http.StatusConflict, service.KindAlreadyCompleted)
}

func TestRouter_AttachProof(t *testing.T) {
	env := newAPIEnv(t)
	user := env.seedUser(t, 1, 0)

	w := env.do(t, http.MethodPost, "/v1/deposits", user, gin.H{"amount": "20000", "method": "bank_transfer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dep model.Deposit
	decode(t, w, &dep)

	upload := func(data []byte, contentType string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="proof"; filename="proof.bin"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/deposits/%d/proof", dep.ID), &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+user)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	assertError(t, upload([]byte("%PDF-1.4 not an image"), "application/pdf"), http.StatusBadRequest, service.KindValidation)

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)
	w = upload(png, "image/png")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &dep)
	require.NotNil(t, dep.ProofImage)
	assert.Regexp(t, `\.png$`, *dep.ProofImage)
}
