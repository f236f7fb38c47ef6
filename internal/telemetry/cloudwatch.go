package telemetry

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"shadowroads/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch publishes run metrics with PutMetricData.
//
// Metrics emitted (all with the TargetCRS dimension):
//   - RunCompleted, RunDuration (ms)
//   - BuildingsLoaded, BuildingsSkipped, RoadsLoaded
//   - ShadowPolygons, ShadedSegments, ShadedLength (m), RoadFailures
//   - SunElevation, SunAzimuth (deg), SunBelowHorizon (0/1)
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
}

var _ Publisher = (*CloudWatch)(nil)

// NewCloudWatch creates a publisher for namespace. An empty namespace uses
// types.MetricNamespace.
func NewCloudWatch(client CloudWatchClient, namespace string) *CloudWatch {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatch{client: client, namespace: namespace}
}

// NewCloudWatchClient builds an SDK client from the default credential
// chain. endpoint overrides the service URL (LocalStack); leave it empty in
// production.
func NewCloudWatchClient(ctx context.Context, region, endpoint string) (*cloudwatch.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// PublishRun implements Publisher.
func (c *CloudWatch) PublishRun(ctx context.Context, r *types.RunReport) error {
	dims := []cwTypes.Dimension{
		{
			Name:  aws.String(types.DimTargetCRS),
			Value: aws.String(r.TargetCRS),
		},
	}
	ts := aws.Time(r.StartedAt.Add(r.Duration))

	datum := func(name string, value float64, unit cwTypes.StandardUnit) cwTypes.MetricDatum {
		return cwTypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(value),
			Unit:       unit,
			Timestamp:  ts,
			Dimensions: dims,
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []cwTypes.MetricDatum{
			datum(types.MetricRunCompleted, 1, cwTypes.StandardUnitCount),
			datum(types.MetricRunDuration, float64(r.Duration.Milliseconds()), cwTypes.StandardUnitMilliseconds),
			datum(types.MetricBuildingsLoaded, float64(r.BuildingsLoaded), cwTypes.StandardUnitCount),
			datum(types.MetricBuildingsSkipped, float64(skippedTotal(r.BuildingsSkipped)), cwTypes.StandardUnitCount),
			datum(types.MetricRoadsLoaded, float64(r.RoadsLoaded), cwTypes.StandardUnitCount),
			datum(types.MetricShadowPolygons, float64(r.ShadowPolygons), cwTypes.StandardUnitCount),
			datum(types.MetricShadedSegments, float64(r.ShadedSegments), cwTypes.StandardUnitCount),
			datum(types.MetricShadedLength, r.ShadedLengthM, cwTypes.StandardUnitNone),
			datum(types.MetricRoadFailures, float64(len(r.RoadFailures)), cwTypes.StandardUnitCount),
			datum(types.MetricSunElevation, r.Sun.ElevationDeg, cwTypes.StandardUnitNone),
			datum(types.MetricSunAzimuth, r.Sun.AzimuthDeg, cwTypes.StandardUnitNone),
			datum(types.MetricSunBelowHorizon, boolValue(r.SunBelowHorizon), cwTypes.StandardUnitCount),
		},
	}

	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("failed to put run metrics: %w", err)
	}
	return nil
}
