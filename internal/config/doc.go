// Package config handles configuration loading for tdsession.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. A file holds any number of named profiles; each profile resolves
// into the session.Config a controller runs with.
//
// # Configuration File
//
// Location (in order):
//
//  1. --config flag
//  2. Path from TDSESSION_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/tdsession/config.yaml
//
// Files ending in .toml are decoded as TOML, anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	profiles:
//	  bot:
//	    token: "${TDSESSION_BOT_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Profiles
//
//	default_profile: bot
//	profiles:
//	  bot:
//	    api_id: 12345
//	    api_hash: "${TDSESSION_API_HASH}"
//	    data_dir: bot            # relative to $XDG_DATA_HOME/tdsession
//	    test: false
//	    use_file_db: false
//	    use_file_gc: true
//	    file_readable_names: true
//	    use_chat_info_db: true
//	    use_message_db: false
//	    use_secret_chats: false
//	    log_name: engine.log     # relative to data_dir
//	    verbosity: 1
//
// An explicit profile name wins over default_profile. Naming a profile the
// file does not define is an error.
//
// # Session Tunables
//
//	session:
//	  workers: 2
//	  wait_timeout: "10s"
//	  max_retries: 5
//	  poll_timeout: "1s"
//	  queue_size: 1000
//	  stop_timeout: "15s"
//	  late_ttl: "5m"
//
// Zero values fall back to the session package defaults.
//
// # Other Sections
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	  file: ""        # rotated with lumberjack when set
//	triage:
//	  enabled: true
//	  path: "triage.db"
//	metrics:
//	  enabled: true
//	  addr: "127.0.0.1:9464"
//	bridge:
//	  remote: ""      # host:port of a bridge serve instance
//	  listen: "127.0.0.1:7443"
//	sink:
//	  redis:
//	    enabled: false
//	    addr: "localhost:6379"
//	    stream: "tdsession:updates"
package config
