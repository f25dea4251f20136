package backend

import (
	"textract/config"
	"textract/extract"
	"textract/logging"
)

// NewSet returns the full backend set configured from cfg.
func NewSet(cfg *config.Config, logger *logging.Logger) extract.Backends {
	if logger == nil {
		logger = logging.Nop()
	}
	return extract.Backends{
		PDF:      PDF{},
		Text:     PlainText{},
		HTML:     HTML{},
		Email:    Email{},
		Mailbox:  Mailbox{},
		Outlook:  Outlook{},
		Rich:     NewTika(cfg.RichCommand, cfg.RichTimeout, logger.Named("tika")),
		Splitter: DocSplitter{},
	}
}
