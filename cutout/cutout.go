// Package cutout fetches survey images of the sky around a position.
package cutout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
)

// DefaultURL is the SDSS DR12 JPEG cutout service.
const DefaultURL = "http://skyservice.pha.jhu.edu/DR12/ImgCutout/getjpeg.aspx"

type Client struct {
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// BaseURL defaults to DefaultURL.
	BaseURL string
	// Pixels is the image width and height. Defaults to 1024.
	Pixels int
	// FieldOfView is the image side in arcminutes. Defaults to 12.
	FieldOfView float64
}

func (c *Client) query(ra, dec float64) url.Values {
	pixels := c.Pixels
	if pixels <= 0 {
		pixels = 1024
	}
	fov := c.FieldOfView
	if fov <= 0 {
		fov = 12
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return url.Values{
		"ra":     {f(ra)},
		"dec":    {f(dec)},
		"width":  {strconv.Itoa(pixels)},
		"height": {strconv.Itoa(pixels)},
		// Arcseconds per pixel.
		"scale": {f(fov * 60 / float64(pixels))},
	}
}

// Fetch streams the JPEG centered on ra, dec (degrees) into w.
func (c *Client) Fetch(ctx context.Context, ra, dec float64, w io.Writer) error {
	base := c.BaseURL
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return err
	}
	u.RawQuery = c.query(ra, dec).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cutout service: %s", resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Save writes the cutout to a file.
func (c *Client) Save(ctx context.Context, ra, dec float64, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := c.Fetch(ctx, ra, dec, f); err != nil {
		f.Close()
		os.Remove(filename)
		return fmt.Errorf("fetching cutout: %w", err)
	}
	return f.Close()
}
