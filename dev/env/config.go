package devenv

// LiveScrapeConfig lives in dev/.state/live_scrape.json5 and lists real
// handles the opt-in live adapter tests fetch.
type LiveScrapeConfig struct {
	Handles map[string]string `json:"handles"`
	// BrowserExecPath overrides the chrome binary used by browser backed sources.
	BrowserExecPath string `json:"browser_exec_path"`
}

func (c LiveScrapeConfig) Handle(source string) string {
	if c.Handles == nil {
		return ""
	}
	return c.Handles[source]
}

// ReadLiveScrapeConfig returns os.ErrNotExist when the file is absent,
// callers treat that as "skip live tests".
func ReadLiveScrapeConfig() (LiveScrapeConfig, error) {
	return GetStateConfig[LiveScrapeConfig]("live_scrape.json5")
}
