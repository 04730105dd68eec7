package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"onboarding/internal/kyc/models"
	"onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
	ptx "onboarding/pkg/platform/tx"
)

// PostgresStore persists KYC applications in PostgreSQL.
// This store is pure I/O; status rules live in the models and services.
// Uniqueness of email/username/PAN/Aadhaar is enforced by unique indexes, so
// the database stays the final arbiter when two submissions race.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed application store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn joins a caller-managed transaction when the context carries one;
// otherwise it runs against the pool. Execute always owns its transaction.
func (s *PostgresStore) conn(ctx context.Context) querier {
	if tx, ok := ptx.From(ctx); ok {
		return tx
	}
	return s.db
}

const applicationColumns = `
	id, full_name, dob, gender, marital_status, fathers_name, nationality,
	profession, address, email, phone, pan, aadhaar, username, password_hash,
	requested_account_type, net_banking_enabled, debit_card_issued, cheque_book_issued,
	passport_photo, passport_photo_type, pan_document, pan_document_type,
	aadhaar_proof, aadhaar_proof_type,
	nominee_name, nominee_mobile, nominee_address, nominee_aadhaar,
	status, rejection_reason, customer_id, created_at, updated_at`

// EnsureSchema creates the applications table and its uniqueness indexes.
// Safe to call on every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS kyc_applications (
			id UUID PRIMARY KEY,
			full_name TEXT NOT NULL,
			dob TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT '',
			marital_status TEXT NOT NULL DEFAULT '',
			fathers_name TEXT NOT NULL DEFAULT '',
			nationality TEXT NOT NULL DEFAULT '',
			profession TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			pan TEXT NOT NULL,
			aadhaar TEXT NOT NULL,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			requested_account_type TEXT NOT NULL DEFAULT '',
			net_banking_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			debit_card_issued BOOLEAN NOT NULL DEFAULT FALSE,
			cheque_book_issued BOOLEAN NOT NULL DEFAULT FALSE,
			passport_photo TEXT NOT NULL DEFAULT '',
			passport_photo_type TEXT NOT NULL DEFAULT '',
			pan_document TEXT NOT NULL DEFAULT '',
			pan_document_type TEXT NOT NULL DEFAULT '',
			aadhaar_proof TEXT NOT NULL DEFAULT '',
			aadhaar_proof_type TEXT NOT NULL DEFAULT '',
			nominee_name TEXT,
			nominee_mobile TEXT,
			nominee_address TEXT,
			nominee_aadhaar TEXT,
			status TEXT NOT NULL,
			rejection_reason TEXT NOT NULL DEFAULT '',
			customer_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS kyc_applications_email_key ON kyc_applications (LOWER(email))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS kyc_applications_username_key ON kyc_applications (LOWER(username))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS kyc_applications_pan_key ON kyc_applications (UPPER(pan))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS kyc_applications_aadhaar_key ON kyc_applications (aadhaar)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS kyc_applications_nominee_aadhaar_key ON kyc_applications (nominee_aadhaar) WHERE nominee_aadhaar IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS kyc_applications_status_idx ON kyc_applications (status, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// uniqueIndexFields maps violated constraint names back to the identity field
// reported to the applicant.
var uniqueIndexFields = map[string]string{
	"kyc_applications_email_key":           "email",
	"kyc_applications_username_key":        "username",
	"kyc_applications_pan_key":             "pan",
	"kyc_applications_aadhaar_key":         "aadhaar",
	"kyc_applications_nominee_aadhaar_key": "nominee aadhaar",
	"kyc_applications_pkey":                "id",
}

func translateUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if field, ok := uniqueIndexFields[pqErr.Constraint]; ok {
			return &DuplicateError{Field: field}
		}
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

// Create checks the cross-field identity rule and inserts in one
// transaction, so both statements observe the same snapshot. The unique
// indexes still backstop same-field races that commit in between.
func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	ctx = ptx.WithTx(ctx, tx)

	if err := s.CheckIdentityAvailable(ctx, app.Identity(), app.ID); err != nil {
		return err
	}

	query := `
		INSERT INTO kyc_applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32, $33, $34)
	`
	if _, err := s.conn(ctx).ExecContext(ctx, query, applicationArgs(app)...); err != nil {
		if dup := translateUnique(err); dup != nil {
			return dup
		}
		return fmt.Errorf("create application: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM kyc_applications WHERE id = $1`
	app, err := scanApplication(s.conn(ctx).QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) FindByKeyword(ctx context.Context, keyword string) (*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM kyc_applications
		WHERE full_name ILIKE '%' || $1 || '%'
		   OR username ILIKE '%' || $1 || '%'
		   OR email ILIKE '%' || $1 || '%'
		   OR UPPER(pan) = UPPER($1)
		   OR aadhaar = $1
		ORDER BY created_at, id
		LIMIT 1
	`
	app, err := scanApplication(s.conn(ctx).QueryRowContext(ctx, query, keyword))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application by keyword: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) Search(ctx context.Context, keyword string) ([]*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM kyc_applications
		WHERE full_name ILIKE '%' || $1 || '%'
		   OR email ILIKE '%' || $1 || '%'
		   OR phone ILIKE '%' || $1 || '%'
		   OR address ILIKE '%' || $1 || '%'
		   OR status ILIKE '%' || $1 || '%'
		   OR UPPER(pan) = UPPER($1)
		   OR aadhaar = $1
		   OR id::text = LOWER($1)
		ORDER BY created_at, id
	`
	return s.queryApplications(ctx, query, keyword)
}

func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]*models.Application, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + applicationColumns + `
		FROM kyc_applications
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`
	return s.queryApplications(ctx, query, offset, limit)
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM kyc_applications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status domain.KycStatus) (int64, error) {
	var n int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kyc_applications WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count applications by status: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) LatestByStatus(ctx context.Context, status domain.KycStatus, limit int) ([]*models.Application, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT ` + applicationColumns + `
		FROM kyc_applications
		WHERE status = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	return s.queryApplications(ctx, query, string(status), limit)
}

func (s *PostgresStore) CreatedBetween(ctx context.Context, start, end time.Time) ([]*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM kyc_applications
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at, id
	`
	return s.queryApplications(ctx, query, start, end)
}

func (s *PostgresStore) CheckIdentityAvailable(ctx context.Context, identity models.Identity, exclude domain.ApplicationID) error {
	// The unique indexes cannot express the cross-field rule (an applicant's
	// Aadhaar colliding with someone else's nominee Aadhaar), so this check
	// covers all fields in one pass. Create still backstops same-field races.
	query := `
		SELECT
			LOWER(email) = LOWER($2),
			LOWER(username) = LOWER($3),
			UPPER(pan) = UPPER($4),
			aadhaar = $5 OR ($6 <> '' AND COALESCE(nominee_aadhaar, '') = $6),
			$7 <> '' AND (aadhaar = $7 OR COALESCE(nominee_aadhaar, '') = $7)
		FROM kyc_applications
		WHERE id <> $1
		  AND (LOWER(email) = LOWER($2)
			OR LOWER(username) = LOWER($3)
			OR UPPER(pan) = UPPER($4)
			OR aadhaar IN ($5, $7)
			OR nominee_aadhaar IN ($6, $7))
		LIMIT 1
	`
	var email, username, pan, aadhaar, nominee bool
	err := s.conn(ctx).QueryRowContext(ctx, query,
		exclude.String(), identity.Email, identity.Username, identity.PAN,
		identity.Aadhaar, identity.Aadhaar, identity.NomineeAadhaar,
	).Scan(&email, &username, &pan, &aadhaar, &nominee)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("check identity availability: %w", err)
	}
	switch {
	case email:
		return &DuplicateError{Field: "email"}
	case username:
		return &DuplicateError{Field: "username"}
	case pan:
		return &DuplicateError{Field: "pan"}
	case aadhaar:
		return &DuplicateError{Field: "aadhaar"}
	case nominee:
		return &DuplicateError{Field: "nominee aadhaar"}
	}
	return sentinel.ErrAlreadyUsed
}

// Execute loads the application under a row lock, validates, applies the
// mutation, and writes it back in one transaction. Concurrent callers
// serialize on the row; the loser re-validates against the committed state.
func (s *PostgresStore) Execute(ctx context.Context, id domain.ApplicationID,
	validate func(*models.Application) error,
	mutate func(*models.Application)) (*models.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + applicationColumns + ` FROM kyc_applications WHERE id = $1 FOR UPDATE`
	app, err := scanApplication(tx.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock application: %w", err)
	}

	if err := validate(app); err != nil {
		return nil, err
	}
	mutate(app)

	update := `
		UPDATE kyc_applications SET
			full_name = $2, dob = $3, gender = $4, marital_status = $5,
			fathers_name = $6, nationality = $7, profession = $8, address = $9,
			email = $10, phone = $11, pan = $12, aadhaar = $13, username = $14,
			password_hash = $15, requested_account_type = $16,
			net_banking_enabled = $17, debit_card_issued = $18, cheque_book_issued = $19,
			passport_photo = $20, passport_photo_type = $21,
			pan_document = $22, pan_document_type = $23,
			aadhaar_proof = $24, aadhaar_proof_type = $25,
			nominee_name = $26, nominee_mobile = $27, nominee_address = $28, nominee_aadhaar = $29,
			status = $30, rejection_reason = $31, customer_id = $32,
			created_at = $33, updated_at = $34
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update, applicationArgs(app)...); err != nil {
		if dup := translateUnique(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("update application: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) queryApplications(ctx context.Context, query string, args ...any) ([]*models.Application, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func applicationArgs(app *models.Application) []any {
	var nomineeName, nomineeMobile, nomineeAddress, nomineeAadhaar sql.NullString
	if app.Nominee != nil {
		nomineeName = sql.NullString{String: app.Nominee.Name, Valid: true}
		nomineeMobile = sql.NullString{String: app.Nominee.Mobile, Valid: true}
		nomineeAddress = sql.NullString{String: app.Nominee.Address, Valid: true}
		nomineeAadhaar = sql.NullString{String: app.Nominee.Aadhaar, Valid: app.Nominee.Aadhaar != ""}
	}
	var customerID sql.NullInt64
	if !app.CustomerID.IsNil() {
		customerID = sql.NullInt64{Int64: int64(app.CustomerID), Valid: true}
	}
	return []any{
		app.ID.String(), app.FullName, app.DOB, app.Gender, app.MaritalStatus,
		app.FathersName, app.Nationality, app.Profession, app.Address,
		app.Email, app.Phone, app.PAN, app.Aadhaar, app.Username, app.PasswordHash,
		app.RequestedAccountType, app.NetBankingEnabled, app.DebitCardIssued, app.ChequeBookIssued,
		app.PassportPhoto.Base64, app.PassportPhoto.ContentType,
		app.PANDocument.Base64, app.PANDocument.ContentType,
		app.AadhaarProof.Base64, app.AadhaarProof.ContentType,
		nomineeName, nomineeMobile, nomineeAddress, nomineeAadhaar,
		string(app.Status), app.RejectionReason, customerID,
		app.CreatedAt, app.UpdatedAt,
	}
}

type applicationRow interface {
	Scan(dest ...any) error
}

func scanApplication(row applicationRow) (*models.Application, error) {
	var (
		app            models.Application
		idText         string
		statusText     string
		nomineeName    sql.NullString
		nomineeMobile  sql.NullString
		nomineeAddress sql.NullString
		nomineeAadhaar sql.NullString
		customerID     sql.NullInt64
	)
	err := row.Scan(
		&idText, &app.FullName, &app.DOB, &app.Gender, &app.MaritalStatus,
		&app.FathersName, &app.Nationality, &app.Profession, &app.Address,
		&app.Email, &app.Phone, &app.PAN, &app.Aadhaar, &app.Username, &app.PasswordHash,
		&app.RequestedAccountType, &app.NetBankingEnabled, &app.DebitCardIssued, &app.ChequeBookIssued,
		&app.PassportPhoto.Base64, &app.PassportPhoto.ContentType,
		&app.PANDocument.Base64, &app.PANDocument.ContentType,
		&app.AadhaarProof.Base64, &app.AadhaarProof.ContentType,
		&nomineeName, &nomineeMobile, &nomineeAddress, &nomineeAadhaar,
		&statusText, &app.RejectionReason, &customerID,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseApplicationID(idText)
	if err != nil {
		return nil, fmt.Errorf("parse stored application id: %w", err)
	}
	app.ID = id
	status, err := domain.ParseKycStatus(statusText)
	if err != nil {
		return nil, fmt.Errorf("parse stored status: %w", err)
	}
	app.Status = status
	if nomineeName.Valid {
		app.Nominee = &models.Nominee{
			Name:    nomineeName.String,
			Mobile:  nomineeMobile.String,
			Address: nomineeAddress.String,
			Aadhaar: nomineeAadhaar.String,
		}
	}
	if customerID.Valid {
		app.CustomerID = domain.CustomerID(customerID.Int64)
	}
	return &app, nil
}

// Health checks database connectivity.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)
