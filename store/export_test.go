package store

import "context"

// Truncate removes all runs. Used by the postgres test to start clean.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	return err
}
