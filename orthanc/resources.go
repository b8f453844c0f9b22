package orthanc

// Resource-level helpers: uploads, lookups and the /tools/find query API.

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type uploadAnswer struct {
	ID     string `json:"ID"`
	Status string `json:"Status"`
}

// UploadInstance posts one DICOM file and returns the Orthanc instance ID.
func (c *Client) UploadInstance(ctx context.Context, dicom []byte) (string, error) {
	data, err := c.PostBytes(ctx, "/instances", dicom, "application/dicom")
	if err != nil {
		return "", err
	}
	var answer uploadAnswer
	if err := json.Unmarshal(data, &answer); err != nil {
		return "", fmt.Errorf("failed to decode upload answer: %w", err)
	}
	return answer.ID, nil
}

// UploadFile reads a DICOM file from disk and uploads it.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return c.UploadInstance(ctx, data)
}

// UploadFolder uploads every .dcm file found below dir.
func (c *Client) UploadFolder(ctx context.Context, dir string) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".dcm" {
			return nil
		}
		id, err := c.UploadFile(ctx, path)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type lookupAnswer struct {
	ID   string `json:"ID"`
	Type string `json:"Type"`
	Path string `json:"Path"`
}

// Lookup resolves a DICOM identifier (e.g. a SOPInstanceUID) to Orthanc IDs,
// optionally filtered by resource type ("Patient", "Study", "Series",
// "Instance"). Empty filter returns every match.
func (c *Client) Lookup(ctx context.Context, needle string, filter string) ([]string, error) {
	data, err := c.PostBytes(ctx, "/tools/lookup", []byte(needle), "text/plain")
	if err != nil {
		return nil, err
	}
	var answers []lookupAnswer
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode lookup answer: %w", err)
	}
	var ids []string
	for _, a := range answers {
		if filter == "" || a.Type == filter {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

// FindStudies runs POST /tools/find at study level and returns the matching
// Orthanc study IDs.
func (c *Client) FindStudies(ctx context.Context, query map[string]string) ([]string, error) {
	return c.find(ctx, "Study", query)
}

// FindPatients runs POST /tools/find at patient level.
func (c *Client) FindPatients(ctx context.Context, query map[string]string) ([]string, error) {
	return c.find(ctx, "Patient", query)
}

func (c *Client) find(ctx context.Context, level string, query map[string]string) ([]string, error) {
	var ids []string
	err := c.PostJSON(ctx, "/tools/find", map[string]any{
		"Level": level,
		"Query": query,
	}, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Resource returns the JSON document of one resource, e.g.
// Resource(ctx, "instances", id).
func (c *Client) Resource(ctx context.Context, kind, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.GetJSON(ctx, "/"+kind+"/"+id, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Studies lists all study IDs.
func (c *Client) Studies(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.GetJSON(ctx, "/studies", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Instances lists all instance IDs.
func (c *Client) Instances(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.GetJSON(ctx, "/instances", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// InstanceDicom downloads the DICOM file of an instance.
func (c *Client) InstanceDicom(ctx context.Context, id string) ([]byte, error) {
	return c.do(ctx, "GET", "/instances/"+id+"/file", nil, "")
}

// DeleteInstance removes one instance.
func (c *Client) DeleteInstance(ctx context.Context, id string) error {
	return c.Delete(ctx, "/instances/"+id)
}

// DeleteAllContent drops every patient from the server. Scenarios use it to
// start from a clean slate without restarting the instance.
func (c *Client) DeleteAllContent(ctx context.Context) error {
	var patients []string
	if err := c.GetJSON(ctx, "/patients", &patients); err != nil {
		return err
	}
	for _, id := range patients {
		if err := c.Delete(ctx, "/patients/"+id); err != nil {
			return err
		}
	}
	return nil
}

// HousekeeperStatus returns GET /housekeeper/status (requires the
// Housekeeper plugin on the server side).
func (c *Client) HousekeeperStatus(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.GetJSON(ctx, "/housekeeper/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}
