package core

// CategoryAmount is one slice of the per-category chart.
type CategoryAmount struct {
	CategoryID int64
	Name       string
	Icon       string
	Color      string
	Amount     Money
}

// MonthAmount is one point of the monthly income/expense series.
type MonthAmount struct {
	Month    string // YYYY-MM
	Income   Money
	Expenses Money
}

// Summary is the dashboard payload for a date filter.
type Summary struct {
	Income     Money
	Expenses   Money
	Balance    Money
	Pending    int64
	ByCategory []CategoryAmount
	Monthly    []MonthAmount
}
