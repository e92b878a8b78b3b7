package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// scanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// pqErrorCode はエラーチェーンからPostgreSQLのエラーコードを取り出す。
func pqErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// isUniqueViolation は一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	return pqErrorCode(err) == pgerrcode.UniqueViolation
}

// isForeignKeyViolation は外部キー制約違反かどうかを判定する。
func isForeignKeyViolation(err error) bool {
	return pqErrorCode(err) == pgerrcode.ForeignKeyViolation
}

// isValidID はUUID形式のIDかどうかを判定する。
// UUID列に不正な文字列を渡すとPostgreSQLがエラーを返すため、クエリ前に弾く。
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
