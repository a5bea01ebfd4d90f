package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-ui-auth/internal/data/cryptoutil"
	"github.com/target/mmk-ui-auth/internal/data/pgxutil"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-auth/internal/errors"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// AccountCacheRepo is the PostgreSQL ports.AccountStore. Token columns are
// encrypted at rest; claims are not stored and are decoded from the ID token
// by the identity provider.
type AccountCacheRepo struct {
	DB   *sql.DB
	Enc  cryptoutil.Encryptor
	Time TimeProvider
}

// NewAccountCacheRepo creates a new AccountCacheRepo.
func NewAccountCacheRepo(db *sql.DB, enc cryptoutil.Encryptor) *AccountCacheRepo {
	return &AccountCacheRepo{DB: db, Enc: enc, Time: &RealTimeProvider{}}
}

type accountCacheRow struct {
	HomeAccountID string     `db:"home_account_id"`
	Username      string     `db:"username"`
	DisplayName   string     `db:"display_name"`
	IDToken       string     `db:"id_token"`
	AccessToken   string     `db:"access_token"`
	RefreshToken  string     `db:"refresh_token"`
	Scopes        []string   `db:"scopes"`
	ExpiresAt     *time.Time `db:"expires_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

const selectAccountColumns = `
	SELECT home_account_id, username, display_name, id_token, access_token,
	       refresh_token, scopes, expires_at, updated_at
	FROM account_cache`

// List returns every cached account in insertion order.
func (r *AccountCacheRepo) List(ctx context.Context) ([]ports.CachedAccount, error) {
	var rows []accountCacheRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		res, err := conn.Query(ctx, selectAccountColumns+` ORDER BY seq ASC`)
		if err != nil {
			return err
		}
		rows, err = pgx.CollectRows(res, pgx.RowToStructByName[accountCacheRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list cached accounts: %w", apperrors.MapDBError(err))
	}

	out := make([]ports.CachedAccount, 0, len(rows))
	for _, row := range rows {
		acct, decErr := r.fromRow(row)
		if decErr != nil {
			return nil, decErr
		}
		out = append(out, acct)
	}
	return out, nil
}

// Save upserts acct. An existing account keeps its position.
func (r *AccountCacheRepo) Save(ctx context.Context, acct ports.CachedAccount) error {
	row, err := r.toRow(acct)
	if err != nil {
		return err
	}
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `
			INSERT INTO account_cache (
				home_account_id, username, display_name, id_token,
				access_token, refresh_token, scopes, expires_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (home_account_id) DO UPDATE SET
				username      = EXCLUDED.username,
				display_name  = EXCLUDED.display_name,
				id_token      = EXCLUDED.id_token,
				access_token  = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				scopes        = EXCLUDED.scopes,
				expires_at    = EXCLUDED.expires_at,
				updated_at    = EXCLUDED.updated_at
		`, row.HomeAccountID, row.Username, row.DisplayName, row.IDToken,
			row.AccessToken, row.RefreshToken, row.Scopes, row.ExpiresAt, row.UpdatedAt)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("save cached account: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Delete removes one account. Deleting an unknown account is not an error.
func (r *AccountCacheRepo) Delete(ctx context.Context, homeAccountID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM account_cache WHERE home_account_id = $1`, homeAccountID)
	if err != nil {
		return fmt.Errorf("delete cached account: %w", apperrors.MapDBError(err))
	}
	return nil
}

// PurgeStale removes accounts not updated since before and returns how many
// were removed.
func (r *AccountCacheRepo) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM account_cache WHERE updated_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge cached accounts: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cached accounts: %w", err)
	}
	return n, nil
}

func (r *AccountCacheRepo) toRow(acct ports.CachedAccount) (accountCacheRow, error) {
	if acct.Account.HomeAccountID == "" {
		return accountCacheRow{}, ErrAccountIDRequired
	}
	row := accountCacheRow{
		HomeAccountID: acct.Account.HomeAccountID,
		Username:      acct.Account.Username,
		DisplayName:   acct.Account.DisplayName,
		Scopes:        acct.Scopes,
		UpdatedAt:     r.Time.Now().UTC(),
	}
	if row.Scopes == nil {
		row.Scopes = []string{}
	}
	if !acct.ExpiresAt.IsZero() {
		exp := acct.ExpiresAt.UTC()
		row.ExpiresAt = &exp
	}
	var err error
	if row.IDToken, err = r.encrypt(acct.IDToken); err != nil {
		return accountCacheRow{}, err
	}
	if row.AccessToken, err = r.encrypt(acct.AccessToken); err != nil {
		return accountCacheRow{}, err
	}
	if row.RefreshToken, err = r.encrypt(acct.RefreshToken); err != nil {
		return accountCacheRow{}, err
	}
	return row, nil
}

func (r *AccountCacheRepo) fromRow(row accountCacheRow) (ports.CachedAccount, error) {
	acct := ports.CachedAccount{
		Account: domainauth.Account{
			HomeAccountID: row.HomeAccountID,
			Username:      row.Username,
			DisplayName:   row.DisplayName,
		},
		Scopes:    row.Scopes,
		UpdatedAt: row.UpdatedAt,
	}
	if row.ExpiresAt != nil {
		acct.ExpiresAt = *row.ExpiresAt
	}
	var err error
	if acct.IDToken, err = r.decrypt(row.IDToken); err != nil {
		return ports.CachedAccount{}, fmt.Errorf("account %s: %w", row.HomeAccountID, err)
	}
	if acct.AccessToken, err = r.decrypt(row.AccessToken); err != nil {
		return ports.CachedAccount{}, fmt.Errorf("account %s: %w", row.HomeAccountID, err)
	}
	if acct.RefreshToken, err = r.decrypt(row.RefreshToken); err != nil {
		return ports.CachedAccount{}, fmt.Errorf("account %s: %w", row.HomeAccountID, err)
	}
	return acct, nil
}

func (r *AccountCacheRepo) encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	c, err := r.Enc.Encrypt([]byte(plain))
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return c, nil
}

func (r *AccountCacheRepo) decrypt(cipher string) (string, error) {
	if cipher == "" {
		return "", nil
	}
	pt, err := r.Enc.Decrypt(cipher)
	if err != nil {
		prefix := cipher
		if len(prefix) > 20 {
			prefix = prefix[:20] + "..."
		}
		return "", fmt.Errorf("decrypt value (prefix: %s): %w", prefix, err)
	}
	return string(pt), nil
}
