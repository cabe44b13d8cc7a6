package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WorkforceRole is a hireable role. Salaries accrue every tick; the hiring
// fee is a one-time debit at recruitment.
type WorkforceRole struct {
	Code               string `json:"code"`
	Name               string `json:"name"`
	HiringFeeCents     int64  `json:"hiring_fee_cents"`
	SalaryCentsPerTick int64  `json:"salary_cents_per_tick"`
}

var workforceRoles = []WorkforceRole{
	{Code: "OPERATOR", Name: "Line Operator", HiringFeeCents: 10_000, SalaryCentsPerTick: 150},
	{Code: "ENGINEER", Name: "Process Engineer", HiringFeeCents: 40_000, SalaryCentsPerTick: 450},
	{Code: "LOGISTICS", Name: "Logistics Coordinator", HiringFeeCents: 25_000, SalaryCentsPerTick: 300},
}

// WorkforceRoles returns the static role catalog.
func WorkforceRoles() []WorkforceRole {
	out := make([]WorkforceRole, len(workforceRoles))
	copy(out, workforceRoles)
	return out
}

func roleByCode(code string) (WorkforceRole, bool) {
	for _, r := range workforceRoles {
		if r.Code == code {
			return r, true
		}
	}
	return WorkforceRole{}, false
}

// RecruitEmployee hires one employee of the given role, debiting the hiring
// fee from available cash.
func (s *Service) RecruitEmployee(ctx context.Context, in RecruitInput) (int64, error) {
	role, ok := roleByCode(in.RoleCode)
	if !ok {
		return 0, fmt.Errorf("%w: unknown role %q", ErrInvariant, in.RoleCode)
	}

	var employeeID int64
	err := s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		tick, err := s.resolveTick(ctx, tx, in.Tick)
		if err != nil {
			return err
		}
		cash, reserved, _, err := lockCompany(ctx, tx, in.CompanyID)
		if err != nil {
			return err
		}
		if cash-reserved < role.HiringFeeCents {
			return ErrInsufficientFunds
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO sim.employees (company_id, role_code, salary_cents_per_tick, tick_hired)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, in.CompanyID, role.Code, role.SalaryCentsPerTick, tick).Scan(&employeeID)
		if err != nil {
			return err
		}
		if _, err := applyCashDelta(ctx, tx, uuid.NewString(), in.CompanyID, tick,
			EntryRecruitmentExpense, -role.HiringFeeCents, 0, "EMPLOYEE", employeeID); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return employeeID, nil
}

// paySalariesTx debits each company's total per-tick payroll. A company that
// cannot cover payroll pays what its available balance allows; the shortfall
// is not carried as debt, cash never goes negative.
func paySalariesTx(ctx context.Context, tx pgx.Tx, nextTick int64) error {
	rows, err := tx.Query(ctx, `
		SELECT e.company_id, SUM(e.salary_cents_per_tick), c.cash_cents, c.reserved_cash_cents
		FROM sim.employees e
		JOIN sim.companies c ON c.id = e.company_id
		GROUP BY e.company_id, c.cash_cents, c.reserved_cash_cents
		ORDER BY e.company_id
	`)
	if err != nil {
		return err
	}
	type payroll struct {
		companyID, total, cash, reserved int64
	}
	var payrolls []payroll
	for rows.Next() {
		var p payroll
		if err := rows.Scan(&p.companyID, &p.total, &p.cash, &p.reserved); err != nil {
			rows.Close()
			return err
		}
		payrolls = append(payrolls, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range payrolls {
		due := p.total
		available := p.cash - p.reserved
		if available < due {
			due = available
		}
		if due <= 0 {
			continue
		}
		if _, err := applyCashDelta(ctx, tx, uuid.NewString(), p.companyID, nextTick,
			EntrySalaryExpense, -due, 0, "PAYROLL", nextTick); err != nil {
			return err
		}
	}
	return nil
}
