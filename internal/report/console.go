package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
)

// Console renders stored portfolios as a table on stdout.
type Console struct {
	out io.Writer
}

// NewConsole creates a stdout report writer.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a report writer for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Print renders one row per account: cash, holdings, and today's round
// trips.
func (c *Console) Print(portfolios []*domain.Portfolio) {
	fmt.Fprintf(c.out, "[%s] %d portfolios\n", time.Now().Format("15:04:05"), len(portfolios))
	if len(portfolios) == 0 {
		return
	}

	today := time.Now().Format("2006-01-02")

	table := tablewriter.NewWriter(c.out)
	table.Header("Account", "Cash", "Positions", "Round trips today")
	for _, portfolio := range portfolios {
		table.Append(
			shortID(portfolio.AccountID),
			portfolio.Cash.StringFixed(2),
			formatHoldings(portfolio.Positions),
			fmt.Sprintf("%d", portfolio.RoundTrips[today]),
		)
	}
	table.Render()
}

// shortID truncates opaque account hashes for readability.
func shortID(accountID string) string {
	if len(accountID) <= 12 {
		return accountID
	}
	return accountID[:12] + "…"
}

func formatHoldings(positions map[string]decimal.Decimal) string {
	if len(positions) == 0 {
		return "-"
	}
	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	parts := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		parts = append(parts, fmt.Sprintf("%s×%s", symbol, positions[symbol]))
	}
	return strings.Join(parts, " ")
}
