package infraprobe

// Version is the library version, sent in the User-Agent of HTTP probes.
const Version = "0.4.0"

// UserAgent is the User-Agent header value of HTTP probes.
const UserAgent = "infraprobe/" + Version
