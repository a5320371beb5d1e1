// Package imagegen turns a user request into saved, watermarked images.
//
// atoms.go contains pure helpers with no dependencies on other package state.
package imagegen

import (
	"net"
	"net/url"
	"strings"
)

// endpointHost returns the lower-cased host of endpoint, accepting bare
// hosts without a scheme.
func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	raw := endpoint
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// IsAzureEndpoint reports whether endpoint is an Azure OpenAI resource.
//
//	IsAzureEndpoint("https://myresource.openai.azure.com")             // true
//	IsAzureEndpoint("https://myresource.cognitiveservices.azure.com")  // true
//	IsAzureEndpoint("https://api.openai.com")                          // false
func IsAzureEndpoint(endpoint string) bool {
	host := endpointHost(endpoint)
	return strings.HasSuffix(host, ".openai.azure.com") ||
		strings.HasSuffix(host, ".cognitiveservices.azure.com")
}

// IsOpenAIEndpoint reports whether endpoint is the public OpenAI API.
func IsOpenAIEndpoint(endpoint string) bool {
	return endpointHost(endpoint) == "api.openai.com"
}

// IsLocalEndpoint reports whether endpoint points at this machine or a
// private network address. Such endpoints are typically text-only model
// servers that cannot generate images.
//
//	IsLocalEndpoint("http://localhost:1234")      // true
//	IsLocalEndpoint("http://192.168.1.100:5000")  // true
//	IsLocalEndpoint("https://api.openai.com")     // false
func IsLocalEndpoint(endpoint string) bool {
	host := endpointHost(endpoint)
	if host == "" {
		return false
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()
}
