package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lnbounty/bounty-api/pkg/api/schemas"
	"github.com/lnbounty/bounty-api/pkg/api/services/iam"
	"github.com/lnbounty/bounty-api/pkg/api/services/wallet"
	"github.com/lnbounty/bounty-api/pkg/lnbits"
)

type GetWalletOutput struct {
	Body schemas.Wallet
}

type DepositInput struct {
	Body struct {
		AmountSats int64 `json:"amount_sats" minimum:"1" doc:"Deposit amount in sats"`
	}
}

type DepositOutput struct {
	Body schemas.Invoice
}

type WithdrawInput struct {
	Body struct {
		Invoice string `json:"invoice" doc:"BOLT11 invoice to pay from the wallet"`
	}
}

type DecodeInvoiceInput struct {
	Body struct {
		Invoice string `json:"invoice" doc:"BOLT11 invoice to decode"`
	}
}

type DecodeInvoiceOutput struct {
	Body struct {
		AmountSats int64 `json:"amount_sats" doc:"Invoice amount in sats"`
	}
}

type WalletHistoryInput struct {
	Offset int `query:"offset" minimum:"0" doc:"Number of entries to skip" required:"false"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size" required:"false"`
}

type WalletHistoryOutput struct {
	Body struct {
		Transactions []schemas.Transaction `json:"transactions" doc:"Payment history, newest first"`
	}
}

func RegisterWallet(api huma.API, svc *wallet.Service, iamSvc *iam.IAMService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-wallet",
		Method:      http.MethodGet,
		Path:        "/api/wallet",
		Summary:     "Get wallet",
		Description: "Returns the authenticated user's wallet, creating it on first access",
		Tags:        []string{TagWallet.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*GetWalletOutput, error) {
		userID, ok := iamSvc.PrincipalID(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("Authentication required")
		}

		details, err := svc.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to fetch wallet")
		}

		resp := &GetWalletOutput{}
		resp.Body.UserID = details.UserID.String()
		resp.Body.TotalSats = details.TotalSats
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-deposit-invoice",
		Method:      http.MethodPost,
		Path:        "/api/wallet/deposit",
		Summary:     "Create deposit invoice",
		Description: "Creates an invoice that credits the user's wallet once paid",
		Tags:        []string{TagWallet.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *DepositInput) (*DepositOutput, error) {
		userID, ok := iamSvc.PrincipalID(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("Authentication required")
		}

		invoice, err := svc.CreateDepositInvoice(ctx, userID, input.Body.AmountSats)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create invoice")
		}

		resp := &DepositOutput{}
		resp.Body.PaymentRequest = invoice.PaymentRequest
		resp.Body.CheckingID = invoice.CheckingID
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "withdraw",
		Method:      http.MethodPost,
		Path:        "/api/wallet/withdraw",
		Summary:     "Pay an invoice",
		Description: "Pays an external invoice from the user's wallet",
		Tags:        []string{TagWallet.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *WithdrawInput) (*struct{}, error) {
		userID, ok := iamSvc.PrincipalID(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		if input.Body.Invoice == "" {
			return nil, huma.Error400BadRequest("invoice is required")
		}

		if err := svc.PayInvoice(ctx, userID, input.Body.Invoice); err != nil {
			switch {
			case errors.Is(err, lnbits.ErrNotEnoughSats):
				return nil, huma.NewError(http.StatusPaymentRequired, "insufficient funds")
			case errors.Is(err, lnbits.ErrInvoiceAlreadyPaid):
				return nil, huma.Error409Conflict("invoice is already paid")
			default:
				return nil, huma.Error500InternalServerError("failed to pay invoice")
			}
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decode-invoice",
		Method:      http.MethodPost,
		Path:        "/api/wallet/decode",
		Summary:     "Decode an invoice",
		Description: "Returns the amount an invoice asks for",
		Tags:        []string{TagWallet.String()},
	}, func(ctx context.Context, input *DecodeInvoiceInput) (*DecodeInvoiceOutput, error) {
		if input.Body.Invoice == "" {
			return nil, huma.Error400BadRequest("invoice is required")
		}

		amount, err := svc.DecodeInvoice(ctx, input.Body.Invoice)
		if err != nil {
			return nil, huma.Error400BadRequest("could not decode invoice")
		}

		resp := &DecodeInvoiceOutput{}
		resp.Body.AmountSats = amount
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wallet-history",
		Method:      http.MethodGet,
		Path:        "/api/wallet/history",
		Summary:     "Wallet history",
		Description: "Returns the user's wallet payment history",
		Tags:        []string{TagWallet.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *WalletHistoryInput) (*WalletHistoryOutput, error) {
		userID, ok := iamSvc.PrincipalID(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("Authentication required")
		}

		txs, err := svc.History(ctx, userID, input.Offset, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to fetch history")
		}

		out := make([]schemas.Transaction, len(txs))
		for i, tx := range txs {
			out[i] = schemas.Transaction{
				CheckingID: tx.CheckingID,
				Pending:    tx.Pending,
				AmountSats: tx.Amount,
				Memo:       tx.Memo,
				Time:       tx.Time,
			}
		}

		resp := &WalletHistoryOutput{}
		resp.Body.Transactions = out
		return resp, nil
	})
}
