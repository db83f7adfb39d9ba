package finstore

import (
	"context"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/writer"
)

// UploadRow is one caller-supplied value for upload. Values arrive untyped
// and are coerced to the field's declared type before any write happens.
type UploadRow struct {
	Ticker    string
	Field     string
	ValidDate Date
	Value     any
}

// UploadResult reports what an upload batch did.
type UploadResult struct {
	// Written counts rows that landed (new revisions or replaced cells).
	Written int
	// Unchanged counts rows skipped because the stored current value was
	// already equal; re-asserting a belief is not a revision.
	Unchanged int
}

// Upload writes a batch of field values. The batch is atomic: a rejected row
// (unknown field, type mismatch, transaction-date violation) aborts the
// whole upload with stored state untouched.
//
// TxnDate stamps the transaction axis for long-tier rows; zero means today.
func (db *DB) Upload(ctx context.Context, rows []UploadRow, txnDate Date) (UploadResult, error) {
	var res UploadResult

	// Resolve and coerce everything before writing anything, so a bad row
	// can never leave a partial batch behind.
	prepared := make([]writer.Row, 0, len(rows))
	for _, in := range rows {
		sec, err := db.master.Resolve(ctx, in.Ticker, ByTicker)
		if err != nil {
			return res, err
		}
		plan, err := db.meta.Load().router.PlanWrite([]string{in.Field}, sec.SecurityType)
		if err != nil {
			return res, err
		}
		target := plan.Groups[0].Targets[0]
		v, err := model.CoerceValue(in.Value, target.Field.DataType)
		if err != nil {
			return res, err
		}
		prepared = append(prepared, writer.Row{
			SecurityID:   sec.ID,
			Field:        target.Field,
			SourceTable:  target.SourceTable,
			SourceColumn: target.SourceColumn,
			ValidDate:    in.ValidDate,
			TxnDate:      txnDate,
			Value:        v,
		})
	}

	wres, err := db.writer.UpsertMany(ctx, prepared)
	if err != nil {
		return res, err
	}
	res.Written = wres.Written
	res.Unchanged = wres.Unchanged
	return res, nil
}

// UploadPricing replaces dense pricing cells in bulk. Each row carries the
// columns it has; missing columns keep their stored values.
func (db *DB) UploadPricing(ctx context.Context, rows []PricingUpload) error {
	prepared := make([]writer.PricingRow, 0, len(rows))
	for _, in := range rows {
		sec, err := db.master.Resolve(ctx, in.Ticker, ByTicker)
		if err != nil {
			return err
		}
		prepared = append(prepared, writer.PricingRow{
			SecurityID: sec.ID,
			ValueDate:  in.Date,
			Cells:      in.Cells,
		})
	}
	return db.writer.InsertPricing(ctx, prepared)
}

// PricingUpload is one dense pricing row keyed by ticker.
type PricingUpload struct {
	Ticker string
	Date   Date
	Cells  map[string]float64 // physical pricing column to value
}

// DividendUpload is one dividend declaration keyed by ticker.
type DividendUpload struct {
	Ticker       string
	ExDate       Date
	RecordDate   Date
	PayableDate  Date
	DeclaredDate Date
	Amount       float64
	DividendType string
	Frequency    string
	Currency     string
	TaxRate      float64
	SpecialFlag  bool
}

// UploadDividends appends dividend records atomically and returns their ids.
func (db *DB) UploadDividends(ctx context.Context, rows []DividendUpload, txnDate Date) ([]string, error) {
	prepared := make([]writer.Dividend, 0, len(rows))
	for _, in := range rows {
		sec, err := db.master.Resolve(ctx, in.Ticker, ByTicker)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, writer.Dividend{
			SecurityID:   sec.ID,
			ExDate:       in.ExDate,
			RecordDate:   in.RecordDate,
			PayableDate:  in.PayableDate,
			DeclaredDate: in.DeclaredDate,
			Amount:       in.Amount,
			DividendType: in.DividendType,
			Frequency:    in.Frequency,
			Currency:     in.Currency,
			TaxRate:      in.TaxRate,
			SpecialFlag:  in.SpecialFlag,
		})
	}
	return db.writer.InsertDividends(ctx, prepared, txnDate)
}

// CorpEventUpload is one corporate action keyed by ticker.
type CorpEventUpload struct {
	Ticker           string
	EventType        string
	AnnouncementDate Date
	EffectiveDate    Date
	ExpirationDate   Date
	Description      string
	Data             string
	Status           string
}

// UploadCorpEvents appends corporate-event records atomically and returns
// their ids.
func (db *DB) UploadCorpEvents(ctx context.Context, rows []CorpEventUpload, txnDate Date) ([]string, error) {
	prepared := make([]writer.CorpEvent, 0, len(rows))
	for _, in := range rows {
		sec, err := db.master.Resolve(ctx, in.Ticker, ByTicker)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, writer.CorpEvent{
			SecurityID:       sec.ID,
			EventType:        in.EventType,
			AnnouncementDate: in.AnnouncementDate,
			EffectiveDate:    in.EffectiveDate,
			ExpirationDate:   in.ExpirationDate,
			Description:      in.Description,
			Data:             in.Data,
			Status:           in.Status,
		})
	}
	return db.writer.InsertCorpEvents(ctx, prepared, txnDate)
}

// AdjFactorUpload is one adjustment factor keyed by ticker.
type AdjFactorUpload struct {
	Ticker           string
	EffectiveDate    Date
	Factor           float64
	AdjType          string
	CumulativeFactor float64
	Description      string
}

// UploadAdjFactors appends adjustment-factor records atomically and returns
// their ids.
func (db *DB) UploadAdjFactors(ctx context.Context, rows []AdjFactorUpload, txnDate Date) ([]string, error) {
	prepared := make([]writer.AdjFactorEvent, 0, len(rows))
	for _, in := range rows {
		sec, err := db.master.Resolve(ctx, in.Ticker, ByTicker)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, writer.AdjFactorEvent{
			SecurityID:       sec.ID,
			EffectiveDate:    in.EffectiveDate,
			Factor:           in.Factor,
			AdjType:          in.AdjType,
			CumulativeFactor: in.CumulativeFactor,
			Description:      in.Description,
		})
	}
	return db.writer.InsertAdjFactors(ctx, prepared, txnDate)
}
