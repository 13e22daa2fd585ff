package common

var Version = "v0.2.0"

var SQLitePath = "tripo-gateway.db"
var SQLiteBusyTimeout = 3000

var (
	UsingSQLite     = false
	UsingPostgreSQL = false
	UsingMySQL      = false
)
