package version

const (
	AppName        = "Grajek"
	AppVersion     = "1.0.0"
	AppDescription = "Discordowy bot muzyczny: kolejki per serwer, playlisty i AutoDJ"
)
