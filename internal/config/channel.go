package config

type ChannelStruct struct {
	// AuthzEvents carries role, binding and assignment changes between
	// instances.
	AuthzEvents string
}

var Channel = &ChannelStruct{
	AuthzEvents: "authz:events",
}
