package gen

// Reporter receives status events from Synthesize in source order
type Reporter interface {
	ReportSkip(src string)
	ReportCompile(src, obj string)
	ReportMissing(src string)
	ReportLink(output string, reason LinkReason)
	ReportUpToDate(output string)
}

// NopReporter discards all events
type NopReporter struct{}

func (NopReporter) ReportSkip(string)             {}
func (NopReporter) ReportCompile(string, string)  {}
func (NopReporter) ReportMissing(string)          {}
func (NopReporter) ReportLink(string, LinkReason) {}
func (NopReporter) ReportUpToDate(string)         {}
