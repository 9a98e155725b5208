package agent

import "fmt"

const rawJSONSuffix = " IMPORTANT: Return ONLY raw JSON."

const (
	researchSystem = "Equity analyst. Concise and data-driven. Cite sources. " +
		"If the ticker is not valid, suggest the closest matching company."

	sentimentSystem = "Financial sentiment analyst covering retail (Reddit, StockTwits, X) and professional " +
		"(financial news) sentiment for stocks. Stay objective, exclude crypto, and make sure the ticker is the right company."

	dividendSystem = "Dividend specialist focused on precise arithmetic. Decide whether the stock pays dividends " +
		"and project payouts across the requested years using the exact fractional share count. " +
		"The cumulative column is a running sum. Check the math before answering."
)

func researchPrompt(ticker string) string {
	return fmt.Sprintf("Briefly research %s: performance, key metrics and sentiment. "+
		"If %s is not a standard ticker, identify the company it most likely refers to.", ticker, ticker)
}

func taxPrompt(ticker, purchase, sell, status string) string {
	return fmt.Sprintf(`Analyze the tax implications for %s bought on %s and sold on %s.
The holding period has been calculated as %s. Treat it as fact.
Rules:
1. Discuss only the category that applies; never mention the other category's rules or rates.
2. Give exactly 2 short bullets under "Key Characteristics".
3. Give exactly 2 short bullets under "Tax Liability Summary" with estimated rates for this category.
4. Use Markdown headers and bullets.`, ticker, purchase, sell, status)
}

func taxSystem(status string) string {
	return fmt.Sprintf("US tax specialist. The transaction is %s. Be extremely concise, "+
		"cover this category only, and never contradict the given status.", status)
}

func sentimentPrompt(ticker string) string {
	return fmt.Sprintf(`Search Reddit, X, StockTwits and major financial news (Bloomberg, Reuters, CNBC) for discussion of the stock or company '%s' over the last 7 days.
'%s' is an equity ticker or company name (for example 'T' is AT&T and 'F' is Ford), not a generic word. Exclude anything about cryptocurrency.
Format:
1. Overall sentiment: Bullish, Bearish or Neutral.
2. Key reasons, separating retail from professional views.
3. Trending topics or concerns.
4. One or two representative comments, posts or headlines.`, ticker, ticker)
}

func dividendPrompt(ticker string, shares float64, years int) string {
	return fmt.Sprintf(`Analyze %[1]s dividends for exactly %[2]g shares over %[3]d years.
Rules:
1. Use %[2]g shares for every year.
2. Annual payout = dividend per share x %[2]g, unrounded until display.
3. Cumulative total for year N = cumulative total for year N-1 + annual payout for year N.
4. The final "Estimated Cumulative Total" must equal the sum of all %[3]d annual payouts.
Format: a Markdown table | Year | Dividend Per Share | Annual Payout | Cumulative Total | with one row per year, then a summary stating the Estimated Cumulative Total for %[2]g shares.
Respond with a JSON object with keys isDividendStock (boolean), hasDividendHistory (boolean) and analysis (string holding the table and summary).`, ticker, shares, years)
}

// dividendSchema is the structured-output schema sent to providers that
// support one.
var dividendSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"isDividendStock":    map[string]any{"type": "BOOLEAN"},
		"hasDividendHistory": map[string]any{"type": "BOOLEAN"},
		"analysis":           map[string]any{"type": "STRING"},
	},
	"required": []any{"isDividendStock", "hasDividendHistory", "analysis"},
}
