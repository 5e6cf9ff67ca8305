// Package httpclient provides basic http functions for retrieving remote feed files.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
)

// GetAuthorizedBytes pulls bytes from url with an api key authorization
// header, used for feed endpoints that require credentials. accept, when not
// empty, is sent as the Accept header.
func GetAuthorizedBytes(client *http.Client, url string, apiKey string, accept string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if len(apiKey) > 0 {
		req.Header.Set("Authorization", fmt.Sprintf("apikey %s", apiKey))
	}
	if len(accept) > 0 {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}
