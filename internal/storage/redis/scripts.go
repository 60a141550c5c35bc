package redis

const (
	// setDefaultsScript writes each field only if the hash does not have it yet
	setDefaultsScript = `
local settings_key = KEYS[1]    -- screencheck:settings

local added = 0
for i = 1, #ARGV, 2 do
  added = added + redis.call('HSETNX', settings_key, ARGV[i], ARGV[i + 1])
end

return added
`

	// appendCycleScript atomically pushes a cycle record and trims the history
	appendCycleScript = `
local cycles_key = KEYS[1]      -- screencheck:cycles

local record = ARGV[1]
local retention = tonumber(ARGV[2])

redis.call('LPUSH', cycles_key, record)
if retention > 0 then
  redis.call('LTRIM', cycles_key, 0, retention - 1)
end

return redis.call('LLEN', cycles_key)
`
)
