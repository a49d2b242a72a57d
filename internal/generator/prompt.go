package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/estctiger/estctiger/models"
)

// maxPromptDocs caps how many retrieved documents are rendered into the
// prompt; maxContentChars truncates each document's content field.
const (
	maxPromptDocs   = 5
	maxContentChars = 500
)

// financialFields are the structured source fields worth surfacing to the
// model beyond the common text fields.
var financialFields = []string{
	"revenue", "revenue_growth_yoy", "subscription_revenue", "subscription_percentage",
	"gaap_operating_margin", "non_gaap_operating_margin", "free_cash_flow_margin",
	"implied_arr", "arr_growth_yoy", "net_expansion_rate", "customers", "fiscal_year",
	"period_end", "status", "notes", "milestone", "description", "impact",
	"revenue_impact", "financial_impact", "partner", "deal_type",
}

// marketData carries whichever market payload the query needed.
type marketData struct {
	summary *models.StockSummary
	series  *models.CandleSeries
}

func (m *marketData) empty() bool {
	return m == nil || (m.summary == nil && m.series == nil)
}

const baseSystemMessage = `You are an ESTC (Elastic stock) financial analyst helping RSU holders make informed decisions.

Your role:
- Analyze ESTC's financial performance and market position
- Help with RSU investment decisions and timing
- Provide clear, actionable insights about ESTC stock
- Explain market trends and competitive landscape
`

const systemGuidelines = `
Guidelines:
- Be direct, confident, and responsive - avoid hedging language
- Focus on actionable investment insights
- Use BOTH your training data AND the retrieved data to provide comprehensive analysis
- Help with RSU timing and tax considerations
- Compare to competitors when relevant
- Reference previous conversation context when relevant for continuity
- Always provide confident, definitive responses using all available information
- NEVER mention incomplete datasets, missing data, or need for more information
- Be helpful and responsive rather than overly cautious about precision
- Make reasonable inferences from the data provided

Citation Requirements:
- MANDATORY: After every fact or data point retrieved from the data source, add a citation in square brackets
- For Elasticsearch data, use format: [index_name, document_id]
- For Finnhub data, use format: [data from finnhub.io API]
- For estimated historical data, use format: [historical estimates (Finnhub subscription limitation)]
- Only add citations for facts that came from the retrieved data, not general knowledge
- Citations should be placed immediately after the specific fact or statistic

Formatting requirements:
- Use clear paragraph breaks between different topics
- Break up long text into digestible sections
- Use line breaks after bullet points and before new topics
- Structure responses with clear sections (e.g., "Key Metrics:", "Investment Perspective:", etc.)
`

// buildSystemMessage assembles role, data context, guidelines, and the
// running conversation.
func buildSystemMessage(search *models.SearchResponse, conversationContext string) string {
	var b strings.Builder
	b.WriteString(baseSystemMessage)

	if search != nil && len(search.Results) > 0 {
		dataMode := "Elasticsearch"
		if search.Method == models.SearchMethodFallback {
			dataMode = "comprehensive ESTC dataset"
		}
		fmt.Fprintf(&b, `
COMPREHENSIVE DATA CONTEXT:
You have access to %d relevant documents from the %s containing:
- Query type: %s
- Total documents found: %d
- Search terms used: %s

This dataset contains complete and current ESTC financial, market, and operational data.
Use this retrieved data to provide confident, definitive answers based on the actual ESTC information available.
`, len(search.Results), dataMode, search.QueryType, search.Total, strings.Join(search.SearchTerms, ", "))
	} else {
		b.WriteString(`
DATA ACCESS ISSUE:
No relevant documents were found for this query.
This may indicate a search configuration issue or missing data in the indices.
`)
	}

	b.WriteString(systemGuidelines)
	b.WriteString(conversationContext)
	return b.String()
}

// pricePhraseInstruction forces the first current-price mention in a
// session into a fixed framing sentence.
func pricePhraseInstruction(summary *models.StockSummary) string {
	return fmt.Sprintf(`

IMPORTANT: Start your response with: "Based on the current stock price of $%s [data from finnhub.io API], " and then continue with your analysis.
`, summary.CurrentPrice.StringFixed(2))
}

// buildUserMessage renders the query, the top retrieved documents, and any
// market data into the prompt the model answers.
func buildUserMessage(query string, search *models.SearchResponse, market *marketData, hasHistory bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User is asking about ESTC (Elastic stock): %s\n", query)

	haveDocs := search != nil && len(search.Results) > 0
	if haveDocs {
		b.WriteString("\n\nRETRIEVED DATA FROM ELASTICSEARCH:\n")
		for i, res := range search.Results {
			if i >= maxPromptDocs {
				break
			}
			fmt.Fprintf(&b, "\n%d. Document ID: %s\n", i+1, res.DocumentID)
			fmt.Fprintf(&b, "   Index: %s\n", res.Index)
			fmt.Fprintf(&b, "   Type: %s\n", res.Type)
			fmt.Fprintf(&b, "   Score: %.2f\n", res.Score)
			writeDocFields(&b, res.Source)
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\nWARNING: No relevant documents found for this query.\n")
	}

	if !market.empty() {
		writeMarketData(&b, market)
	}

	if haveDocs {
		b.WriteString(`
Based on the retrieved data above AND your training knowledge, provide a comprehensive response about ESTC that directly addresses the user's question.
Use specific information from the documents to support your analysis, supplemented with your general market knowledge.
`)
	} else {
		b.WriteString(`
No retrieved documents are available for this query. If stock data is shown above you may reference it with citations, but state that detailed analysis requires the ESTC dataset.
`)
	}

	if hasHistory {
		b.WriteString("\nIMPORTANT: Review the previous conversation context in the system message to maintain continuity and reference previous topics when relevant.\n")
	}

	b.WriteString(`
CRITICAL CITATION REQUIREMENTS:
- MANDATORY: Add citations in square brackets [index_name, document_id] IMMEDIATELY after ANY fact that comes from the retrieved documents
- MANDATORY: For ALL stock data from Finnhub, add citation [data from finnhub.io API] immediately after the relevant facts
- MANDATORY: For ALL estimated stock data, add citation [historical estimates (Finnhub subscription limitation)] immediately after the relevant facts
- ALL current stock prices must come from the stock data above and be cited accordingly
- When referencing historical stock data, ALWAYS include specific stock prices and dates WITH citations
- Do not cite general market knowledge or training data

EXAMPLES OF PROPER CITATIONS:
- "Current stock price is $85.71 [data from finnhub.io API]"
- "Revenue reached $1.48B [estc-financial-data, doc-revenue-2024]"
- "17% year-over-year growth [estc-financial-data, doc-growth-2024]"
`)

	return b.String()
}

func writeDocFields(b *strings.Builder, source map[string]any) {
	if title, ok := source["title"].(string); ok && title != "" {
		fmt.Fprintf(b, "   Title: %s\n", title)
	}
	if summary, ok := source["summary"].(string); ok && summary != "" {
		fmt.Fprintf(b, "   Summary: %s\n", summary)
	}
	if content, ok := source["content"].(string); ok && content != "" {
		if len(content) > maxContentChars {
			content = content[:maxContentChars] + "..."
		}
		fmt.Fprintf(b, "   Content: %s\n", content)
	}
	if date, ok := source["date"].(string); ok && date != "" {
		fmt.Fprintf(b, "   Date: %s\n", date)
	}
	if value, ok := source["value"]; ok && value != nil {
		fmt.Fprintf(b, "   Value: %v\n", value)
	}
	for _, field := range financialFields {
		if v, ok := source[field]; ok && v != nil && v != "" {
			name := titleCase(strings.ReplaceAll(field, "_", " "))
			fmt.Fprintf(b, "   %s: %v\n", name, v)
		}
	}
}

func writeMarketData(b *strings.Builder, market *marketData) {
	if market.series != nil {
		s := market.series
		b.WriteString("\n\nHISTORICAL STOCK DATA (Finnhub):\n")
		fmt.Fprintf(b, "Symbol: %s\n", s.Symbol)
		fmt.Fprintf(b, "Date Range: %s\n", s.DateRange)
		fmt.Fprintf(b, "Total Data Points: %d\n", len(s.PriceData))

		dates := make([]string, 0, len(s.PriceData))
		for d := range s.PriceData {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		if len(dates) > 10 {
			dates = dates[len(dates)-10:]
		}
		b.WriteString("\nRecent Price Data:\n")
		for _, d := range dates {
			p := s.PriceData[d]
			fmt.Fprintf(b, "  %s: Close $%.2f, High $%.2f, Low $%.2f\n", d, p.Close, p.High, p.Low)
		}
		fmt.Fprintf(b, "\nFull dataset contains daily prices from %s.\n", s.DateRange)
		fmt.Fprintf(b, "Data source: %s\n", s.Source)
		b.WriteString("Use this data to find correlations with product events and provide specific stock prices for historical events.\n")
		return
	}

	s := market.summary
	b.WriteString("\n\nREAL-TIME STOCK DATA (Finnhub):\n")
	fmt.Fprintf(b, "Symbol: %s\n", s.Symbol)
	fmt.Fprintf(b, "Current Price: $%s\n", s.CurrentPrice.StringFixed(2))
	fmt.Fprintf(b, "Previous Close: $%s\n", s.PreviousClose.StringFixed(2))
	fmt.Fprintf(b, "Change: $%s (%s%%)\n", s.Change.StringFixed(2), s.ChangePercent.StringFixed(2))
	fmt.Fprintf(b, "Day High: $%s\n", s.DayHigh.StringFixed(2))
	fmt.Fprintf(b, "Day Low: $%s\n", s.DayLow.StringFixed(2))
	fmt.Fprintf(b, "Day Open: $%s\n", s.DayOpen.StringFixed(2))
	fmt.Fprintf(b, "Timestamp: %s\n", s.Timestamp.Format("2006-01-02T15:04:05"))
	if s.HasWeek {
		fmt.Fprintf(b, "Week High: $%s\n", s.WeekHigh.StringFixed(2))
		fmt.Fprintf(b, "Week Low: $%s\n", s.WeekLow.StringFixed(2))
	}
	if s.HasMonth {
		fmt.Fprintf(b, "Month High: $%s\n", s.MonthHigh.StringFixed(2))
		fmt.Fprintf(b, "Month Low: $%s\n", s.MonthLow.StringFixed(2))
		fmt.Fprintf(b, "Month Average: $%s\n", s.MonthAvg.StringFixed(2))
	}
	b.WriteString("\n")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
