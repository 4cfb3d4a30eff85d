package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// DefaultSSMKeyParam is the Parameter Store path of the AssemblyAI key
// when SSM_API_KEY_PARAM is unset.
const DefaultSSMKeyParam = "/call-sentiment/prod/assemblyai-api-key"

// ParameterGetter is the subset of *ssm.Client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadAPIKeyFromSSM fetches a secret from SSM Parameter Store into envVar
// unless envVar is already set. paramName defaults to DefaultSSMKeyParam.
func LoadAPIKeyFromSSM(ctx context.Context, client ParameterGetter, envVar, paramName string) error {
	if os.Getenv(envVar) != "" {
		return nil
	}
	if paramName == "" {
		paramName = DefaultSSMKeyParam
	}

	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("read %s from SSM: %w", paramName, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return fmt.Errorf("SSM parameter %s is empty", paramName)
	}

	os.Setenv(envVar, aws.ToString(result.Parameter.Value))
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(start)).Msg("API key loaded from SSM")
	return nil
}
