package repository_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/jmoiron/sqlx/reflectx"
)

// Columns of the settlements table as created by the migrations. The read
// queries use SELECT *, so sqlx rejects the whole row if any column here has
// no destination field on the struct.
var settlementColumns = []string{
	"id", "deal_id", "period_start", "period_end",
	"total_winnings", "total_buy_ins", "total_expenses", "net_profit",
	"percentage", "markup",
	"investor_share", "player_share",
	"investor_expenses", "player_expenses", "gross_investor_share",
	"total_fees", "tax_withheld", "final_payout", "player_net",
	"stop_loss_breached", "created_at",
}

func TestSettlementCalculation_ScansFullRow(t *testing.T) {
	// Same mapper configuration sqlx uses for scan destinations.
	mapper := reflectx.NewMapperFunc("db", strings.ToLower)
	tm := mapper.TypeMap(reflect.TypeOf(domain.SettlementCalculation{}))
	for _, col := range settlementColumns {
		if tm.GetByPath(col) == nil {
			t.Errorf("column %q has no destination field on SettlementCalculation", col)
		}
	}
}
