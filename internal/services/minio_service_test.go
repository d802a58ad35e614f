package services

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type MinioServiceTestSuite struct {
	suite.Suite
	service MinioService
}

func (suite *MinioServiceTestSuite) SetupTest() {
	svc, err := NewMinioService("localhost:9000", "minioadmin", "minioadmin", "us-east-1", false)
	suite.Require().NoError(err)
	suite.service = svc
}

func TestMinioServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MinioServiceTestSuite))
}

func (suite *MinioServiceTestSuite) TestGetPresignedURL_Success() {
	raw, err := suite.service.GetPresignedURL(context.Background(), "swimdesk-exports", "directory/export.csv", 15*time.Minute)
	suite.Require().NoError(err)

	u, err := url.Parse(raw)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "http", u.Scheme)
	assert.Equal(suite.T(), "localhost:9000", u.Host)
	assert.Equal(suite.T(), "/swimdesk-exports/directory/export.csv", u.Path)
	assert.Equal(suite.T(), "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(suite.T(), u.Query().Get("X-Amz-Signature"))
}

func (suite *MinioServiceTestSuite) TestGetPresignedURL_InvalidBucket() {
	_, err := suite.service.GetPresignedURL(context.Background(), "Invalid_Bucket", "x.csv", time.Minute)
	assert.Error(suite.T(), err)
}

func (suite *MinioServiceTestSuite) TestGetPresignedURL_InvalidExpiry() {
	_, err := suite.service.GetPresignedURL(context.Background(), "swimdesk-exports", "x.csv", 8*24*time.Hour)
	assert.Error(suite.T(), err)
}

func TestNewMinioService_InvalidEndpoint(t *testing.T) {
	_, err := NewMinioService("localhost:9000/path", "a", "b", "", false)
	assert.Error(t, err)
}
