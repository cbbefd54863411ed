package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/richardliu001/shop-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// Handler exposes the ledger, deposit and order services over HTTP.
type Handler struct {
	ledger    *service.Ledger
	deposits  *service.DepositService
	orders    *service.OrderService
	maxUpload int64
}

func NewHandler(l *service.Ledger, d *service.DepositService, o *service.OrderService, maxUpload int64) *Handler {
	return &Handler{ledger: l, deposits: d, orders: o, maxUpload: maxUpload}
}

// RegisterHandlers mounts the user routes on user and the admin routes on admin.
func (h *Handler) RegisterHandlers(user, admin *gin.RouterGroup) {
	user.GET("/balance", h.balance)
	user.GET("/history", h.history)

	user.POST("/deposits", h.createDeposit)
	user.GET("/deposits", h.listDeposits)
	user.GET("/deposits/:id", h.getDeposit)
	user.POST("/deposits/:id/proof", h.attachProof)

	user.POST("/orders", h.createOrder)
	user.GET("/orders", h.listOrders)
	user.GET("/orders/:id", h.getOrder)
	user.POST("/orders/:id/pay", h.payOrder)
	user.POST("/orders/:id/cancel", h.cancelOrder)

	admin.POST("/deposits/:id/confirm", h.confirmDeposit)
	admin.POST("/deposits/:id/reject", h.rejectDeposit)
	admin.POST("/orders/:id/complete", h.completeOrder)
}

func (h *Handler) balance(c *gin.Context) {
	bal, err := h.ledger.Balance(c, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": bal})
}

func (h *Handler) history(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		badRequest(c, "invalid limit")
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if s := c.Query("since"); s != "" {
		if since, err = time.Parse(time.RFC3339, s); err != nil {
			badRequest(c, "invalid since")
			return
		}
	}
	logs, err := h.ledger.History(c, currentUser(c), limit, since)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

type createDepositReq struct {
	Amount string `json:"amount" binding:"required"`
	Method string `json:"method" binding:"required"`
}

func (h *Handler) createDeposit(c *gin.Context) {
	var req createDepositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	amt, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(c, "invalid amount")
		return
	}
	d, err := h.deposits.CreateDeposit(c, currentUser(c), amt, req.Method)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) listDeposits(c *gin.Context) {
	ds, err := h.deposits.ListDeposits(c, currentUser(c), pageParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (h *Handler) getDeposit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	d, err := h.deposits.GetDeposit(c, id)
	if err == nil && d.UserID != currentUser(c) && !isAdmin(c) {
		err = service.ErrDepositNotFound
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) attachProof(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("proof")
	if err != nil {
		badRequest(c, "proof file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cannot read proof file")
		return
	}
	defer f.Close()
	// one byte over the limit is enough for the store to reject it
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		badRequest(c, "cannot read proof file")
		return
	}
	d, err := h.deposits.AttachProof(c, id, currentUser(c), data, fh.Header.Get("Content-Type"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) confirmDeposit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	d, err := h.deposits.ConfirmDeposit(c, id, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type reasonReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectDeposit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	d, err := h.deposits.RejectDeposit(c, id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type createOrderReq struct {
	ProductName string `json:"product_name" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
	Price       string `json:"price" binding:"required"`
	Notes       string `json:"notes"`
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		badRequest(c, "invalid price")
		return
	}
	o, err := h.orders.CreateOrder(c, currentUser(c), req.ProductName, req.Quantity, price, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) listOrders(c *gin.Context) {
	status := model.OrderStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "invalid status")
		return
	}
	orders, err := h.orders.ListOrders(c, currentUser(c), pageParam(c), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c, id)
	if err == nil && o.UserID != currentUser(c) && !isAdmin(c) {
		err = service.ErrOrderNotFound
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) payOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	o, err := h.orders.PayOrder(c, id, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req reasonReq
	// the body is optional
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	o, err := h.orders.CancelOrder(c, id, currentUser(c), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) completeOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	o, err := h.orders.CompleteOrder(c, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		return 1
	}
	return page
}
