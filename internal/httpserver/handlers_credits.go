package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podcraft/backend/pkg/ledger"
)

func (server *Server) handleBalance(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	accountID, err := ledger.NewAccountID(user.UserID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	balance, err := server.credits.GetBalance(ctx.Request.Context(), accountID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": balancePayload{
		CurrentCredits:   balance.CurrentCredits,
		TotalEarned:      balance.TotalEarned,
		TotalSpent:       balance.TotalSpent,
		TransactionCount: balance.TransactionCount,
	}})
}

func (server *Server) handleListTransactions(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	accountID, err := ledger.NewAccountID(user.UserID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	offset, limit := pagingParams(ctx)
	transactions, err := server.credits.ListTransactions(ctx.Request.Context(), accountID, offset, limit)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payloads := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payloads = append(payloads, mapTransactionPayload(transaction))
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": payloads})
}

type purchaseRequest struct {
	Credits int64 `json:"credits"`
}

func (server *Server) handleStartPurchase(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request purchaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	opened, err := server.billing.StartPurchase(ctx.Request.Context(), user.UserID, request.Credits)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"purchase": gin.H{
		"transaction_id": opened.TransactionID.String(),
		"payment_ref":    opened.PaymentRef,
		"credits":        opened.Credits,
		"price_cents":    opened.PriceCents,
		"status":         opened.Status.String(),
	}})
}

func (server *Server) handleConfirmPurchase(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	transactionID, err := ledger.NewTransactionID(ctx.Param("transactionID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	confirmed, err := server.billing.ConfirmPurchase(ctx.Request.Context(), user.UserID, transactionID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"purchase": gin.H{
		"transaction_id": confirmed.TransactionID.String(),
		"payment_ref":    confirmed.PaymentRef,
		"credits":        confirmed.Credits,
		"status":         confirmed.Status.String(),
	}})
}

func (server *Server) handleCancelPurchase(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	transactionID, err := ledger.NewTransactionID(ctx.Param("transactionID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if err := server.billing.CancelPurchase(ctx.Request.Context(), user.UserID, transactionID); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
