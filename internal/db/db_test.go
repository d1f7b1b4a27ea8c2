package db

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestLedgerSchema(t *testing.T) {
	require.Len(t, ledgerModels, 1)

	s, err := schema.Parse(ledgerModels[0], &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	assert.Equal(t, "pin_ledger_entries", s.Table)

	email := s.LookUpField("Email")
	require.NotNil(t, email)
	assert.Equal(t, "email", email.DBName)
	assert.True(t, email.NotNull)

	idx := s.LookIndex("idx_pin_ledger_entries_email")
	require.NotNil(t, idx)
	assert.Equal(t, "UNIQUE", idx.Class)
}
