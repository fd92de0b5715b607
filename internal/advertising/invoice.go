package advertising

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const invoiceDayLayout = "20060102"

// FormatInvoiceNumber renders the invoice number for the seq-th invoice issued on day, e.g. 20260315-0007.
func FormatInvoiceNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d", day.Format(invoiceDayLayout), seq)
}

// issueTaxInvoice issues the VAT invoice for a completed payment inside the caller's transaction.
// It returns issued=false without error when the seller has not registered a business number.
func issueTaxInvoice(ctx context.Context, q Queries, pay Payment, seller Seller, serviceTitle string, now time.Time) (TaxInvoice, bool, error) {
	if strings.TrimSpace(seller.BusinessNumber) == "" {
		return TaxInvoice{}, false, nil
	}
	company, err := q.CompanyInfo(ctx)
	if err != nil {
		return TaxInvoice{}, false, err
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	seq, err := q.NextInvoiceSequence(ctx, day)
	if err != nil {
		return TaxInvoice{}, false, err
	}
	if serviceTitle == "" {
		serviceTitle = "service"
	}
	inv, err := q.InsertTaxInvoice(ctx, TaxInvoice{
		InvoiceNumber:          FormatInvoiceNumber(day, seq),
		PaymentID:              pay.ID,
		SubscriptionID:         pay.SubscriptionID,
		SellerID:               pay.SellerID,
		IssueDate:              day,
		SupplierBusinessNumber: company.BusinessNumber,
		SupplierCompanyName:    company.CompanyName,
		SupplierCEOName:        company.CEOName,
		SupplierAddress:        company.Address,
		SupplierBusinessType:   company.BusinessType,
		SupplierBusinessItem:   company.BusinessItem,
		BuyerBusinessNumber:    seller.BusinessNumber,
		BuyerCompanyName:       seller.BusinessName,
		BuyerCEOName:           seller.CEOName,
		BuyerAddress:           seller.BusinessAddress,
		BuyerBusinessType:      seller.BusinessType,
		BuyerBusinessItem:      seller.BusinessItem,
		BuyerEmail:             seller.TaxEmail,
		SupplyAmount:           pay.SupplyAmount,
		TaxAmount:              pay.TaxAmount,
		TotalAmount:            pay.Amount,
		ItemName:               serviceTitle + " advertising",
		Status:                 "issued",
	})
	if err != nil {
		return TaxInvoice{}, false, err
	}
	return inv, true, nil
}
