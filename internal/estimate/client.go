package estimate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/model"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultTextModel  = "gpt-4o-mini"
	defaultImageModel = "gpt-4o"
	defaultTimeout    = 30 * time.Second
	maxTokens         = 500
)

const foodFields = `Respond with a JSON object containing:
- name: string (descriptive name of the food)
- calories: number (estimated calories)
- protein: number (grams)
- carbs: number (grams)
- fat: number (grams)
- sugar: number (grams)
- portion: string (e.g. "1 cup", "100g", "1 medium")
- confidence: number (0-1, your confidence in the estimate)`

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	Credentials  CredentialProvider
	TextModel    string
	ImageModel   string
	Timeout      time.Duration
	RoundTargets bool
}

func (c *Client) EstimateFromText(ctx context.Context, description string) (Result, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Result{}, fmt.Errorf("description is required")
	}
	prompt := fmt.Sprintf("Analyze this food description and provide nutritional information: %q\n\n%s\n\nConsider typical portion sizes. Be accurate but conservative in your estimates.", description, foodFields)
	content, err := c.complete(ctx, c.modelOr(c.TextModel, defaultTextModel), prompt)
	if err != nil {
		return Result{}, err
	}
	return decodeResult(content)
}

func (c *Client) EstimateFromImage(ctx context.Context, img Image) (Result, error) {
	if len(img.Data) == 0 {
		return Result{}, fmt.Errorf("image is empty")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	prompt := "Analyze this food image and provide nutritional information.\n\n" + foodFields +
		"\n\nBe accurate but conservative in your estimates. If unsure, estimate on the higher side for calories."
	parts := []contentPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &imageURL{URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)}},
	}
	content, err := c.complete(ctx, c.modelOr(c.ImageModel, defaultImageModel), parts)
	if err != nil {
		return Result{}, err
	}
	return decodeResult(content)
}

func (c *Client) EstimateTargets(ctx context.Context, p model.UserProfile) (model.DailyTarget, error) {
	if err := p.Validate(); err != nil {
		return model.DailyTarget{}, err
	}
	content, err := c.complete(ctx, c.modelOr(c.TextModel, defaultTextModel), targetsPrompt(p))
	if err != nil {
		return model.DailyTarget{}, err
	}
	var raw struct {
		Calories flexFloat `json:"calories"`
		Protein  flexFloat `json:"protein"`
		Carbs    flexFloat `json:"carbs"`
		Fat      flexFloat `json:"fat"`
		Sugar    flexFloat `json:"sugar"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return model.DailyTarget{}, fmt.Errorf("%w: decode targets: %v", errvalues.ErrInvalidEstimate, err)
	}
	t := model.DailyTarget{
		Calories: float64(raw.Calories),
		Protein:  float64(raw.Protein),
		Carbs:    float64(raw.Carbs),
		Fat:      float64(raw.Fat),
		Sugar:    float64(raw.Sugar),
	}
	if err := t.Macros().Validate(); err != nil {
		return model.DailyTarget{}, fmt.Errorf("%w: %v", errvalues.ErrInvalidEstimate, err)
	}
	if t.Calories <= 0 {
		return model.DailyTarget{}, fmt.Errorf("%w: calorie target is zero", errvalues.ErrInvalidEstimate)
	}
	if c.RoundTargets {
		t = NormalizeTargets(t)
	}
	return t, nil
}

// SuggestMealIdeas asks for three free-text meal ideas that fit remaining.
func (c *Client) SuggestMealIdeas(ctx context.Context, remaining model.Macros, meal model.MealType) ([]string, error) {
	if meal == "" {
		meal = model.MealSnack
	}
	prompt := fmt.Sprintf(`Suggest 3 %s options that would help meet these remaining nutritional targets:
- Calories: %.0f
- Protein: %.0fg
- Carbs: %.0fg
- Fat: %.0fg

Respond with a JSON object {"suggestions": [...]} holding 3 strings, each a meal suggestion with portion size.`,
		meal, remaining.Calories, remaining.Protein, remaining.Carbs, remaining.Fat)
	content, err := c.complete(ctx, c.modelOr(c.TextModel, defaultTextModel), prompt)
	if err != nil {
		return nil, err
	}
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return nil, fmt.Errorf("%w: decode suggestions: %v", errvalues.ErrInvalidEstimate, err)
	}
	ideas := make([]string, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			ideas = append(ideas, s)
		}
	}
	return ideas, nil
}

func targetsPrompt(p model.UserProfile) string {
	weightUnit, heightUnit := "lbs", "inches"
	if p.Units == model.UnitsMetric {
		weightUnit, heightUnit = "kg", "cm"
	}
	age, weight, height := "not specified", "not specified", "not specified"
	if p.Age != nil {
		age = strconv.Itoa(*p.Age)
	}
	if p.CurrentWeight != nil {
		weight = strconv.FormatFloat(*p.CurrentWeight, 'f', -1, 64) + weightUnit
	}
	if p.Height != nil {
		height = strconv.FormatFloat(*p.Height, 'f', -1, 64) + heightUnit
	}
	gender := orDefault(string(p.Gender), "not specified")
	activity := orDefault(string(p.ActivityLevel), string(model.ActivityModerate))
	goal := orDefault(string(p.Goal), string(model.GoalMaintain))
	return fmt.Sprintf(`Calculate daily nutritional targets for a person with the following profile:
- Age: %s
- Gender: %s
- Activity Level: %s
- Goal: %s
- Current Weight: %s
- Height: %s

Provide realistic, healthy targets. Respond with a JSON object containing:
- calories: number (daily calorie target)
- protein: number (grams per day)
- carbs: number (grams per day)
- fat: number (grams per day)
- sugar: number (maximum grams per day)

Use standard nutritional guidelines and ensure macros add up correctly.`, age, gender, activity, goal, weight, height)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (c *Client) modelOr(configured, def string) string {
	if m := strings.TrimSpace(configured); m != "" {
		return m
	}
	return def
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatMessage content is either a string or a list of contentPart.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete sends one user message and returns the first choice's text.
func (c *Client) complete(ctx context.Context, modelName string, content any) (string, error) {
	if c.Credentials == nil {
		return "", errvalues.ErrMissingCredential
	}
	key, err := c.Credentials.APIKey(ctx)
	if err != nil {
		return "", err
	}
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	payload, err := json.Marshal(chatRequest{
		Model:          modelName,
		Messages:       []chatMessage{{Role: "user", Content: content}},
		MaxTokens:      maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal estimator request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create estimator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errvalues.ErrEstimateFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", errvalues.ErrEstimateFailed, err)
	}
	var parsed chatResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil && parsed.Error != nil {
			msg = ": " + parsed.Error.Message
		}
		return "", fmt.Errorf("%w: status %d%s", errvalues.ErrEstimateFailed, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode response: %v", errvalues.ErrEstimateFailed, decodeErr)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", errvalues.ErrEstimateFailed)
	}
	return parsed.Choices[0].Message.Content, nil
}

func decodeResult(content string) (Result, error) {
	var raw struct {
		Name       string     `json:"name"`
		Calories   flexFloat  `json:"calories"`
		Protein    flexFloat  `json:"protein"`
		Carbs      flexFloat  `json:"carbs"`
		Fat        flexFloat  `json:"fat"`
		Sugar      flexFloat  `json:"sugar"`
		Portion    string     `json:"portion"`
		Confidence *flexFloat `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return Result{}, fmt.Errorf("%w: decode estimate: %v", errvalues.ErrInvalidEstimate, err)
	}
	r := Result{
		Name:     strings.TrimSpace(raw.Name),
		Calories: float64(raw.Calories),
		Protein:  float64(raw.Protein),
		Carbs:    float64(raw.Carbs),
		Fat:      float64(raw.Fat),
		Sugar:    float64(raw.Sugar),
		Portion:  strings.TrimSpace(raw.Portion),
	}
	if raw.Confidence != nil {
		c := float64(*raw.Confidence)
		r.Confidence = &c
	}
	if err := r.Validate(); err != nil {
		return Result{}, err
	}
	return r, nil
}

// stripFences removes a surrounding ``` block some models add even in
// JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// flexFloat accepts JSON numbers, numeric strings with an optional unit
// suffix ("12g", "250 kcal") and null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		end := 0
		for end < len(s) && (s[end] == '.' || s[end] == '-' || (s[end] >= '0' && s[end] <= '9')) {
			end++
		}
		s = s[:end]
		if s == "" {
			*f = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", string(b))
	}
	*f = flexFloat(v)
	return nil
}
