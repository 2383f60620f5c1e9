package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
)

// LoanRepository — чтение займа вместе с клиентом.
// Таблицы loans и clients принадлежат подсистеме выдачи займов.
type LoanRepository interface {
	// GetWithClient возвращает займ с данными клиента.
	GetWithClient(ctx context.Context, id int64) (*model.Loan, error)
	// LockWithClient возвращает займ и блокирует его строку до конца транзакции.
	LockWithClient(ctx context.Context, id int64) (*model.Loan, error)
}

type loanRepo struct {
	db DBTX
}

// NewLoanRepository создаёт репозиторий займов.
func NewLoanRepository(db DBTX) LoanRepository {
	return &loanRepo{db: db}
}

const loanQuery = `
	SELECT l.id, l.client_id, c.name, c.phone_number, c.email, c.address,
		l.principal::float8, l.total_loan_amount::float8, l.term_weeks, l.status,
		l.created_at, l.approved_at, l.disbursed_at
	FROM loans l
	JOIN clients c ON c.id = l.client_id
	WHERE l.id = $1`

func (r *loanRepo) GetWithClient(ctx context.Context, id int64) (*model.Loan, error) {
	return r.get(ctx, loanQuery, id)
}

func (r *loanRepo) LockWithClient(ctx context.Context, id int64) (*model.Loan, error) {
	return r.get(ctx, loanQuery+"\n\tFOR UPDATE OF l", id)
}

func (r *loanRepo) get(ctx context.Context, query string, id int64) (*model.Loan, error) {
	l := &model.Loan{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.ClientID, &l.ClientName, &l.ClientPhone, &l.ClientEmail, &l.ClientAddress,
		&l.Principal, &l.TotalLoanAmount, &l.TermWeeks, &l.Status,
		&l.CreatedAt, &l.ApprovedAt, &l.DisbursedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения займа: %w", err)
	}
	return l, nil
}
