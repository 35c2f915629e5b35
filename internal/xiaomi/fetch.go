package xiaomi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/httpx"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

const deviceDataPath = "/user/get_user_device_data"

// deviceDataReply is the data API envelope. Each event's value is a JSON
// document of the scale's metrics for one reading.
type deviceDataReply struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  []struct {
		Time  int64  `json:"time"`
		Value string `json:"value"`
	} `json:"result"`
}

// scaleEvent is the metric document inside one device-data event. All fields
// other than weight are model-dependent and may be absent.
type scaleEvent struct {
	Weight          *float64 `json:"weight"`
	BMI             *float64 `json:"bmi"`
	BodyFat         *float64 `json:"body_fat"`
	BodyWater       *float64 `json:"body_water"`
	MuscleMass      *float64 `json:"muscle_mass"`
	BoneMass        *float64 `json:"bone_mass"`
	VisceralFat     *float64 `json:"visceral_fat"`
	BasalMetabolism *float64 `json:"basal_metabolism"`
	MetabolicAge    *float64 `json:"metabolic_age"`
	BodyScore       *float64 `json:"body_score"`
	HeartRate       *float64 `json:"heart_rate"`
}

// FetchMeasurements reads the weight series for the given device model.
// Requires a validated session (common.ErrNoActiveSession otherwise).
// Transport and deserialization failures come back as common.ErrFetch.
// Records are returned newest-first, as the service delivers them.
func (s *Session) FetchMeasurements(ctx context.Context, model string) ([]models.Measurement, error) {
	if s.token.ServiceToken == "" {
		return nil, common.ErrNoActiveSession
	}

	data, err := json.Marshal(map[string]any{
		"did":        model,
		"key":        "weight",
		"type":       "prop",
		"limit":      500,
		"time_start": 0,
		"time_end":   time.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}

	body, err := s.signedPost(ctx, deviceDataPath, string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}

	var reply deviceDataReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: malformed device data: %v", common.ErrFetch, err)
	}
	if reply.Code != 0 {
		return nil, fmt.Errorf("%w: device data: %s (code %d)", common.ErrFetch, reply.Message, reply.Code)
	}

	records := make([]models.Measurement, 0, len(reply.Result))
	for _, ev := range reply.Result {
		m, ok := parseScaleEvent(ev.Time, ev.Value)
		if !ok {
			continue
		}
		records = append(records, m)
	}

	// The service contract is newest-first; enforce it so downstream
	// consumers (statistics, encoder) can rely on the ordering.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	return records, nil
}

// parseScaleEvent maps one raw event to a Measurement. Events without a
// usable weight are dropped rather than failing the whole fetch.
func parseScaleEvent(unix int64, value string) (models.Measurement, bool) {
	var ev scaleEvent
	if err := json.Unmarshal([]byte(value), &ev); err != nil {
		return models.Measurement{}, false
	}
	if ev.Weight == nil || *ev.Weight <= 0 || unix <= 0 {
		return models.Measurement{}, false
	}

	return models.Measurement{
		Timestamp:       time.Unix(unix, 0).UTC(),
		Weight:          *ev.Weight,
		BMI:             ev.BMI,
		BodyFat:         ev.BodyFat,
		BodyWater:       ev.BodyWater,
		MuscleMass:      ev.MuscleMass,
		BoneMass:        ev.BoneMass,
		VisceralFat:     ev.VisceralFat,
		BasalMetabolism: ev.BasalMetabolism,
		MetabolicAge:    ev.MetabolicAge,
		BodyScore:       ev.BodyScore,
		HeartRate:       ev.HeartRate,
	}, true
}

// signedPost issues a signed form POST to the data API and returns the body.
func (s *Session) signedPost(ctx context.Context, path, data string) ([]byte, error) {
	nonce, err := makeNonce(time.Now())
	if err != nil {
		return nil, err
	}
	snonce, err := signedNonce(s.token.SSecurity, nonce)
	if err != nil {
		return nil, err
	}
	signature, err := signRequest(path, snonce, nonce, data)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("_nonce", nonce)
	form.Set("data", data)
	form.Set("signature", signature)
	encoded := form.Encode()

	resp, err := httpx.DoWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.apiBase+path, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("x-xiaomi-protocal-flag-cli", "PROTOCAL-HTTP2")
		req.AddCookie(&http.Cookie{Name: "userId", Value: s.token.UserID})
		req.AddCookie(&http.Cookie{Name: "serviceToken", Value: s.token.ServiceToken})
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	body, err := httpx.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device data: %s", resp.Status)
	}
	return body, nil
}
