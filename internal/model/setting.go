package model

import "time"

// Well known site setting keys. The data source keys configure which
// backend the next process start opens.
const (
	SettingDataSource      = "data_source"
	SettingAPIBaseURL      = "api_base_url"
	SettingMySQLHost       = "mysql_host"
	SettingMySQLPort       = "mysql_port"
	SettingMySQLDatabase   = "mysql_database"
	SettingMySQLUser       = "mysql_user"
	SettingMySQLPassword   = "mysql_password"
	SettingSupabaseURL     = "supabase_url"
	SettingSupabaseAnonKey = "supabase_anon_key"
	SettingFooterText      = "footer_text"
	SettingContactPhone    = "contact_phone"
	SettingContactEmail    = "contact_email"
)

// SecretSettings never leave the admin API.
var SecretSettings = map[string]bool{
	SettingMySQLPassword:   true,
	SettingSupabaseAnonKey: true,
}

type SiteSetting struct {
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	Description string    `json:"description" db:"description"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DataSourceSettings configure the backend and are admin only.
var DataSourceSettings = map[string]bool{
	SettingDataSource:      true,
	SettingAPIBaseURL:      true,
	SettingMySQLHost:       true,
	SettingMySQLPort:       true,
	SettingMySQLDatabase:   true,
	SettingMySQLUser:       true,
	SettingMySQLPassword:   true,
	SettingSupabaseURL:     true,
	SettingSupabaseAnonKey: true,
}
