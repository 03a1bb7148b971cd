package notify

import (
	"fmt"

	"github.com/abdul-hamid-achik/control/packages/core/config"
)

// FromConfig builds a manager for the configured services. It returns nil
// when no service is configured.
func FromConfig(cfg *config.NotifyConfig) (*Manager, error) {
	if cfg == nil || len(cfg.Services) == 0 {
		return nil, nil
	}

	on, err := ParseNotifyOn(cfg.On)
	if err != nil {
		return nil, err
	}

	var notifiers []Notifier
	for _, service := range cfg.Services {
		switch service {
		case "slack":
			if cfg.SlackWebhook == "" {
				return nil, fmt.Errorf("slack notifications need a webhook URL")
			}
			var opts []SlackOption
			if cfg.SlackChannel != "" {
				opts = append(opts, WithSlackChannel(cfg.SlackChannel))
			}
			notifiers = append(notifiers, NewSlackNotifier(cfg.SlackWebhook, opts...))
		case "teams":
			if cfg.TeamsWebhook == "" {
				return nil, fmt.Errorf("teams notifications need a webhook URL")
			}
			notifiers = append(notifiers, NewTeamsNotifier(cfg.TeamsWebhook))
		default:
			return nil, fmt.Errorf("unknown notification service %q", service)
		}
	}

	return NewManager(on, notifiers...), nil
}
