package common

// AccessTokenHeaderName is the gRPC/HTTP metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// APIVersion is reported by the backend on Ping.
const APIVersion = "2.2"
