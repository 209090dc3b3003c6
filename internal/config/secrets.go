package config

// Redacted returns a copy of cfg with secrets replaced by "***", for logging
// the active configuration.
func Redacted(cfg *Config) Config {
	out := *cfg

	redact(&out.Limitless.APIKey)
	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Server.AuthToken)

	// Copy slices so the redacted view cannot alias the original.
	out.Catalog.Statuses = cloneStrings(cfg.Catalog.Statuses)
	out.Catalog.AssetKeywords = cloneStrings(cfg.Catalog.AssetKeywords)
	out.Catalog.DurationKeywords = cloneStrings(cfg.Catalog.DurationKeywords)
	out.Notify.Events = cloneStrings(cfg.Notify.Events)
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)

	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
