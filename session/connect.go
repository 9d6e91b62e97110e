package session

import (
	"context"

	"github.com/apache/spark-connect-go/v34/client/sql"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// connectClient adapts the Spark Connect Go client to sparkConn. The client
// does not take a context, so ctx is only checked before each call.
type connectClient struct {
	spark sql.SparkSession
}

func dialSpark(remote string) (sparkConn, error) {
	if remote == "" {
		return nil, errors.NewValidationError("remote", "required in spark mode", remote)
	}
	spark, err := sql.SparkSession.Builder.Remote(remote).Build()
	if err != nil {
		return nil, err
	}
	return &connectClient{spark: spark}, nil
}

func (c *connectClient) ReadView(ctx context.Context, view, path, format string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if format == FormatCSV {
		return c.Exec(ctx, csvViewSQL(view, path))
	}
	df, err := c.spark.Read().Format(format).Load(path)
	if err != nil {
		return err
	}
	return df.CreateTempView(view, true, false)
}

func (c *connectClient) Exec(ctx context.Context, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.spark.Sql(query)
	return err
}

func (c *connectClient) Collect(ctx context.Context, query string) ([]string, [][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	df, err := c.spark.Sql(query)
	if err != nil {
		return nil, nil, err
	}
	schema, err := df.Schema()
	if err != nil {
		return nil, nil, err
	}
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = f.Name
	}

	rows, err := df.Collect()
	if err != nil {
		return nil, nil, err
	}
	values := make([][]any, len(rows))
	for i, row := range rows {
		if values[i], err = row.Values(); err != nil {
			return nil, nil, err
		}
	}
	return cols, values, nil
}

func (c *connectClient) Stop() error {
	return c.spark.Stop()
}
