package fitbridge

import "context"

// The Get*/Save*/Delete* forms below run the matching blocking call on a
// new goroutine and hand its outcome to cb exactly once.

// GetDailyStepCountSamples is the callback form of DailySteps.
func (c *Client) GetDailyStepCountSamples(ctx context.Context, opts QueryOptions, cb func(Result[[]SourceGroup])) {
	go func() {
		v, err := c.DailySteps(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// GetDailyDistanceSamples is the callback form of DailyDistance.
func (c *Client) GetDailyDistanceSamples(ctx context.Context, opts QueryOptions, cb func(Result[[]Record])) {
	go func() {
		v, err := c.DailyDistance(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// GetDailyCalorieSamples is the callback form of DailyCalories.
func (c *Client) GetDailyCalorieSamples(ctx context.Context, opts QueryOptions, cb func(Result[[]Record])) {
	go func() {
		v, err := c.DailyCalories(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// GetWeightSamples is the callback form of WeightSamples.
func (c *Client) GetWeightSamples(ctx context.Context, opts QueryOptions, cb func(Result[[]Record])) {
	go func() {
		v, err := c.WeightSamples(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// GetHeightSamples is the callback form of HeightSamples.
func (c *Client) GetHeightSamples(ctx context.Context, opts QueryOptions, cb func(Result[[]Record])) {
	go func() {
		v, err := c.HeightSamples(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// SaveWeightAsync is the callback form of SaveWeight.
func (c *Client) SaveWeightAsync(ctx context.Context, opts WeightOptions, cb func(Result[bool])) {
	go func() {
		v, err := c.SaveWeight(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// DeleteWeightAsync is the callback form of DeleteWeight.
func (c *Client) DeleteWeightAsync(ctx context.Context, opts WeightOptions, cb func(Result[bool])) {
	go func() {
		v, err := c.DeleteWeight(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// SaveHeightAsync is the callback form of SaveHeight.
func (c *Client) SaveHeightAsync(ctx context.Context, opts HeightOptions, cb func(Result[bool])) {
	go func() {
		v, err := c.SaveHeight(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// DeleteHeightAsync is the callback form of DeleteHeight.
func (c *Client) DeleteHeightAsync(ctx context.Context, opts HeightOptions, cb func(Result[bool])) {
	go func() {
		v, err := c.DeleteHeight(ctx, opts)
		cb(resultOf(v, err))
	}()
}

// IsAvailableAsync is the callback form of IsAvailable.
func (c *Client) IsAvailableAsync(ctx context.Context, cb func(Result[bool])) {
	go func() {
		v, err := c.IsAvailable(ctx)
		cb(resultOf(v, err))
	}()
}

// IsEnabledAsync is the callback form of IsEnabled.
func (c *Client) IsEnabledAsync(ctx context.Context, cb func(Result[bool])) {
	go func() {
		v, err := c.IsEnabled(ctx)
		cb(resultOf(v, err))
	}()
}
